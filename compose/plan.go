package compose

// Position of a clip in the sequence it will be assembled into.
type Position struct {
	IsFirst bool
	IsLast  bool
}

// PositionOf returns the position of the i-th of n clips.
func PositionOf(i, n int) Position {
	return Position{IsFirst: i == 0, IsLast: i == n-1}
}

type Plan struct {
	Duration      float64
	AudioDuration float64
	FadeIn        bool
	FadeOut       bool
	FadeDuration  float64
}

// PlanClip sizes a clip: narration plus a trailing buffer of silence. Fades eat into
// the clip rather than extending it. The first clip never fades in and the last never
// fades out; a single clip has neither.
func PlanClip(audioDuration float64, pos Position, buffer, fade float64) Plan {
	return Plan{
		Duration:      audioDuration + buffer,
		AudioDuration: audioDuration,
		FadeIn:        !pos.IsFirst,
		FadeOut:       !pos.IsLast,
		FadeDuration:  fade,
	}
}
