package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"SlideToVideo-server/media"
)

// CommandEngine runs a local neural TTS program, e.g. a VieNeu-TTS inference script.
// Args may use {text_file}, {text}, {output}, {language}, {voice} and {ref_audio}.
type CommandEngine struct {
	EngineName string
	Command    string
	Args       []string
	WorkDir    string
	Languages  []string
	VoiceClone bool
	// PresetVoices are "id" or "Display Name=id" entries.
	PresetVoices []string
	Runner       media.Runner
}

func (e *CommandEngine) Name() string { return e.EngineName }

func (e *CommandEngine) SupportsLanguage(lang string) bool {
	for _, l := range e.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (e *CommandEngine) SupportsVoiceClone() bool { return e.VoiceClone }

func (e *CommandEngine) Voices() []Voice {
	out := make([]Voice, 0, len(e.PresetVoices))
	for _, entry := range e.PresetVoices {
		name, id, ok := strings.Cut(entry, "=")
		if !ok {
			id = name
		}
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if id != "" {
			out = append(out, Voice{ID: id, Name: name})
		}
	}
	return out
}

func (e *CommandEngine) UsesModelSlot() bool { return true }

// Available checks that the program can be found.
func (e *CommandEngine) Available() bool {
	if e.Command == "" {
		return false
	}
	if filepath.IsAbs(e.Command) {
		_, err := os.Stat(e.Command)
		return err == nil
	}
	_, err := exec.LookPath(e.Command)
	return err == nil
}

func (e *CommandEngine) Synthesize(ctx context.Context, req Request, dest string) error {
	textFile, err := os.CreateTemp(filepath.Dir(dest), ".tts-*.txt")
	if err != nil {
		return fmt.Errorf("write text file: %w", err)
	}
	defer os.Remove(textFile.Name())
	if _, err := textFile.WriteString(req.Text); err != nil {
		textFile.Close()
		return fmt.Errorf("write text file: %w", err)
	}
	textFile.Close()

	refAudio := ""
	if req.CloneRef != "" {
		if _, err := os.Stat(req.CloneRef); err == nil {
			refAudio = req.CloneRef
		}
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	absText, _ := filepath.Abs(textFile.Name())
	args := media.ExpandArgs(e.Args, map[string]string{
		"text_file": absText,
		"text":      req.Text,
		"output":    absDest,
		"language":  req.Language,
		"voice":     req.Voice,
		"ref_audio": refAudio,
	})
	_, err = e.Runner.Run(ctx, e.WorkDir, e.Command, args...)
	return err
}
