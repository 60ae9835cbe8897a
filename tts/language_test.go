package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "zh", NormalizeTag("zh-TW"))
	assert.Equal(t, "pt", NormalizeTag("pt_br"))
	assert.Equal(t, "vi", NormalizeTag("VI"))
	assert.Equal(t, "en", NormalizeTag("sw"))
}

func TestLinguaDetector(t *testing.T) {
	if testing.Short() {
		t.Skip("loads language models")
	}
	d := NewLinguaDetector(0.2)
	assert.Equal(t, "fr", DetectLanguage("Bonjour à tous, aujourd'hui nous parlons de la météo en France.", d))
	assert.Equal(t, "de", DetectLanguage("Guten Morgen, heute sprechen wir über das Wetter in Deutschland.", d))
	assert.Equal(t, "vi", DetectLanguage("Xin chào các bạn, hôm nay chúng ta sẽ học về thời tiết.", d))
}
