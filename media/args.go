package media

import (
	"sort"
	"strings"
)

// ExpandArgs substitutes {name} placeholders in a configured argument list. Each
// argument is rewritten in one pass, so a value that itself contains "{output}" stays
// literal. An argument whose placeholders all resolve to empty strings is dropped,
// together with the flag right before it ("--ref_audio {ref_audio}" disappears when
// there is no reference).
func ExpandArgs(args []string, values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, 0, len(args))
	prevIsFlag := false
	for _, a := range args {
		hasPlaceholder, allEmpty := false, true
		for _, k := range keys {
			if strings.Contains(a, "{"+k+"}") {
				hasPlaceholder = true
				if values[k] != "" {
					allEmpty = false
				}
			}
		}
		if hasPlaceholder && allEmpty {
			if prevIsFlag {
				out = out[:len(out)-1]
			}
			prevIsFlag = false
			continue
		}
		out = append(out, r.Replace(a))
		prevIsFlag = !hasPlaceholder && strings.HasPrefix(a, "-")
	}
	return out
}
