package tts

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// DefaultLanguage is used whenever detection has nothing better to offer.
const DefaultLanguage = "vi"

// minDetectRunes is the shortest text handed to a statistical detector.
const minDetectRunes = 10

var supportedLanguages = map[string]bool{
	"vi": true, "en": true, "zh": true, "ja": true, "ko": true, "th": true, "fr": true,
	"de": true, "es": true, "it": true, "pt": true, "ru": true, "ar": true, "hi": true,
}

// SupportedLanguages returns the closed set of language tags the pipeline narrates.
func SupportedLanguages() []string {
	return []string{"vi", "en", "zh", "ja", "ko", "th", "fr", "de", "es", "it", "pt", "ru", "ar", "hi"}
}

func IsSupported(lang string) bool { return supportedLanguages[lang] }

// Detector guesses the language of a text. ok is false when it has no confident answer.
type Detector interface {
	Detect(text string) (tag string, ok bool)
}

// DetectLanguage maps text to a supported language tag. It never fails.
func DetectLanguage(text string, d Detector) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DefaultLanguage
	}
	if d != nil && utf8.RuneCountInString(trimmed) >= minDetectRunes {
		if tag, ok := d.Detect(trimmed); ok {
			return NormalizeTag(tag)
		}
	}
	return heuristicLanguage(trimmed)
}

// NormalizeTag collapses regional variants onto their base language and maps anything
// outside the supported set to English.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if supportedLanguages[tag] {
		return tag
	}
	if base, _, found := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-"); found && supportedLanguages[base] {
		return base
	}
	return "en"
}

var vietnameseMarks = []rune{'á', 'à', 'ả', 'ã', 'ạ', 'ă', 'â', 'đ', 'ê', 'ô', 'ơ', 'ư'}

var englishWords = map[string]bool{
	"the": true, "and": true, "is": true, "in": true, "you": true, "that": true, "it": true, "for": true,
}

func heuristicLanguage(text string) string {
	lower := strings.ToLower(text)
	for _, r := range vietnameseMarks {
		if strings.ContainsRune(lower, r) {
			return "vi"
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if englishWords[w] {
			return "en"
		}
	}
	return DefaultLanguage
}

// LinguaDetector wraps a lingua-go detector restricted to the supported languages plus a
// few common ones that must be recognised as unsupported rather than misfiled.
type LinguaDetector struct {
	detector      lingua.LanguageDetector
	minConfidence float64
}

func NewLinguaDetector(minConfidence float64) *LinguaDetector {
	languages := []lingua.Language{
		lingua.Vietnamese, lingua.English, lingua.Chinese, lingua.Japanese, lingua.Korean,
		lingua.Thai, lingua.French, lingua.German, lingua.Spanish, lingua.Italian,
		lingua.Portuguese, lingua.Russian, lingua.Arabic, lingua.Hindi,
		lingua.Indonesian, lingua.Dutch, lingua.Polish, lingua.Turkish, lingua.Swedish,
	}
	return &LinguaDetector{
		detector:      lingua.NewLanguageDetectorBuilder().FromLanguages(languages...).Build(),
		minConfidence: minConfidence,
	}
}

func (l *LinguaDetector) Detect(text string) (string, bool) {
	values := l.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return "", false
	}
	best := values[0]
	if best.Value() < l.minConfidence {
		return "", false
	}
	return strings.ToLower(best.Language().IsoCode639_1().String()), true
}
