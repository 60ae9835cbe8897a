package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanDurationIsAudioPlusBuffer(t *testing.T) {
	p := PlanClip(3.2, PositionOf(1, 3), 5, 0.5)
	assert.InDelta(t, 8.2, p.Duration, 1e-9)
	assert.Equal(t, 3.2, p.AudioDuration)
	assert.True(t, p.FadeIn)
	assert.True(t, p.FadeOut)
}

func TestFadeRulesForSequence(t *testing.T) {
	n := 4
	for i := 0; i < n; i++ {
		p := PlanClip(1, PositionOf(i, n), 5, 0.5)
		assert.Equal(t, i != 0, p.FadeIn, "clip %d fade-in", i)
		assert.Equal(t, i != n-1, p.FadeOut, "clip %d fade-out", i)
	}
}

func TestSingleClipHasNoFades(t *testing.T) {
	p := PlanClip(2, PositionOf(0, 1), 5, 0.5)
	assert.False(t, p.FadeIn)
	assert.False(t, p.FadeOut)
	assert.Equal(t, 7.0, p.Duration)
}
