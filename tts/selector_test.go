package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubDetector struct {
	tag string
	ok  bool
}

func (s stubDetector) Detect(string) (string, bool) { return s.tag, s.ok }

func TestDetectLanguageHeuristics(t *testing.T) {
	assert.Equal(t, "vi", DetectLanguage("", nil))
	assert.Equal(t, "vi", DetectLanguage("Xin chào đây là bài giảng", nil))
	assert.Equal(t, "en", DetectLanguage("This is the deck", nil))
	// "it" inside "item" is not an English word match.
	assert.Equal(t, "vi", DetectLanguage("item", nil))
	assert.Equal(t, "vi", DetectLanguage("12345", nil))
}

func TestDetectLanguageWithDetector(t *testing.T) {
	long := "the sentence is long enough"
	assert.Equal(t, "zh", DetectLanguage(long, stubDetector{"zh-cn", true}))
	assert.Equal(t, "pt", DetectLanguage(long, stubDetector{"pt-BR", true}))
	assert.Equal(t, "en", DetectLanguage(long, stubDetector{"nl", true}))
	assert.Equal(t, "fr", DetectLanguage(long, stubDetector{"fr", true}))
	// Unconfident detector falls back to heuristics.
	assert.Equal(t, "en", DetectLanguage(long, stubDetector{"", false}))
	// Short text never reaches the detector.
	assert.Equal(t, "vi", DetectLanguage("short", stubDetector{"fr", true}))
}

func TestSelectorOrdering(t *testing.T) {
	native := &fakeEngine{name: "vieneu", languages: []string{"vi"}, available: true}
	universal := &fakeEngine{name: "universal", available: true}
	s := &Selector{Native: native, Universal: universal}

	assert.Equal(t, []string{"vieneu", "universal"}, s.Select("Xin chào các bạn", Options{}).Names())
	assert.Equal(t, []string{"universal"}, s.Select("Hello and welcome", Options{}).Names())
	assert.Equal(t, []string{"universal"}, s.Select("Xin chào", Options{ForceFallback: true}).Names())

	native.available = false
	assert.Equal(t, []string{"universal"}, s.Select("Xin chào", Options{}).Names())
}

func TestSelectorIsDeterministic(t *testing.T) {
	s := &Selector{
		Native:    &fakeEngine{name: "vieneu", languages: []string{"vi"}, available: true},
		Universal: &fakeEngine{name: "universal", available: true},
	}
	first := s.Select("Bài giảng hôm nay", Options{})
	for i := 0; i < 20; i++ {
		again := s.Select("Bài giảng hôm nay", Options{})
		assert.Equal(t, first.Language, again.Language)
		assert.Equal(t, first.Names(), again.Names())
	}
}

func TestSelectorLanguageOverride(t *testing.T) {
	s := &Selector{
		Native:    &fakeEngine{name: "vieneu", languages: []string{"vi"}, available: true},
		Universal: &fakeEngine{name: "universal", available: true},
	}
	sel := s.Select("Hello and welcome", Options{Language: "vi"})
	assert.Equal(t, "vi", sel.Language)
	assert.Equal(t, []string{"vieneu", "universal"}, sel.Names())
}
