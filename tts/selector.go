package tts

// Options tune a single selection.
type Options struct {
	// ForceFallback skips the native engine entirely.
	ForceFallback bool
	// Language overrides detection when set to a supported tag.
	Language string
}

type Selection struct {
	Language string
	Engines  []Engine
}

func (s Selection) Names() []string {
	names := make([]string, len(s.Engines))
	for i, e := range s.Engines {
		names[i] = e.Name()
	}
	return names
}

// Selector orders candidate engines for a text: the native engine first when it can take
// the language, the universal fallback always last.
type Selector struct {
	Native    Engine
	Universal Engine
	Detector  Detector
	// ForceFallback applies to every selection, on top of Options.ForceFallback.
	ForceFallback bool
}

func (s *Selector) Select(text string, opts Options) Selection {
	lang := opts.Language
	if !IsSupported(lang) {
		lang = DetectLanguage(text, s.Detector)
	}
	sel := Selection{Language: lang}
	force := s.ForceFallback || opts.ForceFallback
	if s.Native != nil && !force && s.Native.SupportsLanguage(lang) && s.Native.Available() {
		sel.Engines = append(sel.Engines, s.Native)
	}
	if s.Universal != nil {
		sel.Engines = append(sel.Engines, s.Universal)
	}
	return sel
}

// Voices maps each configured engine that offers preset voices to its list.
func (s *Selector) Voices() map[string][]Voice {
	out := make(map[string][]Voice)
	for _, eng := range []Engine{s.Native, s.Universal} {
		if eng == nil {
			continue
		}
		if vl, ok := eng.(VoiceLister); ok {
			out[eng.Name()] = vl.Voices()
		}
	}
	return out
}
