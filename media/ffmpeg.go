package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"SlideToVideo-server/models"
)

// ClipSpec describes one still-image clip: the image held for Duration seconds with the
// narration starting at 0 and silence after it.
type ClipSpec struct {
	Image        string
	Audio        string
	Duration     float64
	FadeIn       bool
	FadeOut      bool
	FadeDuration float64
}

// OverlaySpec places a talking-head video on top of a base video.
type OverlaySpec struct {
	Base         string
	Head         string
	BaseDuration float64
	// Mode is "pip" (bottom-right corner, Scale of the canvas width) or "full".
	Mode   string
	Scale  float64
	Margin int
}

// AudioSegment is one input of an audio concatenation followed by PadAfter seconds of silence.
type AudioSegment struct {
	Path     string
	PadAfter float64
}

type Encoder interface {
	EncodeClip(ctx context.Context, spec ClipSpec, dest string) error
	Concat(ctx context.Context, clips []string, dest string) error
	Overlay(ctx context.Context, spec OverlaySpec, dest string) error
	ConcatAudio(ctx context.Context, segments []AudioSegment, dest string) error
}

type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg drives the ffmpeg and ffprobe binaries. Every clip is encoded with the same
// canvas, frame rate, codecs and audio layout so that concatenation can stream-copy.
type FFmpeg struct {
	Bin      string
	ProbeBin string
	Preset   string
	FPS      int
	Width    int
	Height   int
	Runner   Runner
}

func NewFFmpeg(bin, probeBin, preset string, fps, width, height int) *FFmpeg {
	return &FFmpeg{
		Bin:      bin,
		ProbeBin: probeBin,
		Preset:   preset,
		FPS:      fps,
		Width:    width,
		Height:   height,
		Runner:   ExecRunner{},
	}
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	_, err := f.Runner.Run(ctx, "", f.Bin, append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)...)
	return err
}

func (f *FFmpeg) videoCodecArgs() []string {
	return []string{
		"-c:v", "libx264", "-preset", f.Preset, "-pix_fmt", "yuv420p", "-r", strconv.Itoa(f.FPS),
	}
}

func (f *FFmpeg) audioCodecArgs() []string {
	return []string{"-c:a", "aac", "-b:a", "192k", "-ar", "44100", "-ac", "2"}
}

// ClipArgs builds the ffmpeg arguments for EncodeClip.
func (f *FFmpeg) ClipArgs(spec ClipSpec, dest string) []string {
	video := fmt.Sprintf("[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,format=yuv420p",
		f.Width, f.Height, f.Width, f.Height)
	if spec.FadeIn && spec.FadeDuration > 0 {
		video += fmt.Sprintf(",fade=t=in:st=0:d=%s", ff(spec.FadeDuration))
	}
	if spec.FadeOut && spec.FadeDuration > 0 {
		video += fmt.Sprintf(",fade=t=out:st=%s:d=%s", ff(spec.Duration-spec.FadeDuration), ff(spec.FadeDuration))
	}
	filter := video + "[v];[1:a]aformat=sample_rates=44100:channel_layouts=stereo,apad[a]"

	args := []string{
		"-loop", "1", "-framerate", strconv.Itoa(f.FPS), "-t", ff(spec.Duration), "-i", spec.Image,
		"-i", spec.Audio,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "[a]",
		"-t", ff(spec.Duration),
	}
	args = append(args, f.videoCodecArgs()...)
	args = append(args, "-tune", "stillimage")
	args = append(args, f.audioCodecArgs()...)
	return append(args, "-movflags", "+faststart", dest)
}

func (f *FFmpeg) EncodeClip(ctx context.Context, spec ClipSpec, dest string) error {
	if spec.Duration <= 0 {
		return fmt.Errorf("encode clip: non-positive duration %.3f", spec.Duration)
	}
	return f.run(ctx, f.ClipArgs(spec, dest)...)
}

// Concat joins clips with the concat demuxer. Clips keep their own fades.
func (f *FFmpeg) Concat(ctx context.Context, clips []string, dest string) error {
	if len(clips) == 0 {
		return fmt.Errorf("concat: %w", models.ErrNoValidClips)
	}
	list, err := os.CreateTemp(filepath.Dir(dest), ".concat-*.txt")
	if err != nil {
		return fmt.Errorf("concat list: %w", err)
	}
	defer os.Remove(list.Name())
	for _, c := range clips {
		abs, err := filepath.Abs(c)
		if err != nil {
			list.Close()
			return err
		}
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := list.Close(); err != nil {
		return err
	}
	return f.run(ctx, "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", "-movflags", "+faststart", dest)
}

// OverlayArgs builds the ffmpeg arguments for Overlay. The head is shown only while it
// lasts and the output always has the base duration and base audio.
func (f *FFmpeg) OverlayArgs(spec OverlaySpec, dest string) []string {
	var filter string
	if spec.Mode == "full" {
		filter = fmt.Sprintf("[1:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black@0[h];"+
			"[0:v][h]overlay=0:0:eof_action=pass,format=yuv420p[v]", f.Width, f.Height, f.Width, f.Height)
	} else {
		w := int(float64(f.Width)*spec.Scale) / 2 * 2
		filter = fmt.Sprintf("[1:v]scale=%d:-2[h];[0:v][h]overlay=W-w-%d:H-h-%d:eof_action=pass,format=yuv420p[v]",
			w, spec.Margin, spec.Margin)
	}
	args := []string{
		"-i", spec.Base, "-i", spec.Head,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "0:a?",
		"-t", ff(spec.BaseDuration),
	}
	args = append(args, f.videoCodecArgs()...)
	return append(args, "-c:a", "copy", "-movflags", "+faststart", dest)
}

func (f *FFmpeg) Overlay(ctx context.Context, spec OverlaySpec, dest string) error {
	return f.run(ctx, f.OverlayArgs(spec, dest)...)
}

// ConcatAudioArgs builds a filter graph that normalises each input, pads it with
// silence and concatenates everything into one PCM track.
func (f *FFmpeg) ConcatAudioArgs(segments []AudioSegment, dest string) []string {
	var args []string
	var filter, labels strings.Builder
	for i, s := range segments {
		args = append(args, "-i", s.Path)
		fmt.Fprintf(&filter, "[%d:a]aformat=sample_rates=44100:channel_layouts=mono", i)
		if s.PadAfter > 0 {
			fmt.Fprintf(&filter, ",apad=pad_dur=%s", ff(s.PadAfter))
		}
		fmt.Fprintf(&filter, "[a%d];", i)
		fmt.Fprintf(&labels, "[a%d]", i)
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[out]", labels.String(), len(segments))
	args = append(args, "-filter_complex", filter.String(), "-map", "[out]", "-c:a", "pcm_s16le", dest)
	return args
}

func (f *FFmpeg) ConcatAudio(ctx context.Context, segments []AudioSegment, dest string) error {
	if len(segments) == 0 {
		return fmt.Errorf("concat audio: %w", models.ErrEmptyInput)
	}
	return f.run(ctx, f.ConcatAudioArgs(segments, dest)...)
}

// Duration reads WAV headers directly and asks ffprobe for everything else.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), models.ErrMissingAsset)
	}
	if d, err := WAVDuration(path); err == nil {
		return d, nil
	} else if err != errNotWAV {
		return 0, fmt.Errorf("probe %s: %v: %w", filepath.Base(path), err, models.ErrMissingAsset)
	}
	out, err := f.Runner.Run(ctx, "", f.ProbeBin,
		"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("probe %s: unreadable duration %q: %w", filepath.Base(path), strings.TrimSpace(string(out)), models.ErrMissingAsset)
	}
	return d, nil
}
