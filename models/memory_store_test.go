package models

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresentation(id string, n int) *Presentation {
	p := &Presentation{ID: id, Filename: "deck.pdf"}
	for i := 1; i <= n; i++ {
		p.Slides = append(p.Slides, Slide{Index: i, Content: fmt.Sprintf("slide %d", i), Status: SlideStatusPending})
	}
	return p
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore("")
	require.NoError(t, err)

	require.NoError(t, s.CreatePresentation(ctx, newTestPresentation("p1", 2)))
	assert.Error(t, s.CreatePresentation(ctx, newTestPresentation("p1", 2)))

	got, err := s.GetPresentation(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got.Slides, 2)

	got.Slides[0].Content = "mutated"
	again, _ := s.GetPresentation(ctx, "p1")
	assert.Equal(t, "slide 1", again.Slides[0].Content)

	_, err = s.GetPresentation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePresentation(ctx, "p1"))
	assert.ErrorIs(t, s.DeletePresentation(ctx, "p1"), ErrNotFound)
}

func TestMemoryStoreUpdateSlideRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemoryStore("")
	require.NoError(t, s.CreatePresentation(ctx, newTestPresentation("p1", 1)))

	_, err := s.UpdateSlide(ctx, "p1", 1, func(sl *Slide) error {
		sl.GeneratedScript = "half written"
		return errors.New("abort")
	})
	require.Error(t, err)
	p, _ := s.GetPresentation(ctx, "p1")
	assert.Empty(t, p.Slides[0].GeneratedScript)

	_, err = s.UpdateSlide(ctx, "p1", 5, func(sl *Slide) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentSlideUpdates(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemoryStore("")
	require.NoError(t, s.CreatePresentation(ctx, newTestPresentation("p1", 8)))

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, err := s.UpdateSlide(ctx, "p1", idx, func(sl *Slide) error {
					sl.GeneratedScript += "x"
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.UpdatePresentation(ctx, "p1", func(p *Presentation) error {
			p.AvatarPath = "avatar.png"
			return nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	p, err := s.GetPresentation(ctx, "p1")
	require.NoError(t, err)
	for _, sl := range p.Slides {
		assert.Equal(t, "xxxxxxxxxx", sl.GeneratedScript)
	}
	assert.Equal(t, "avatar.png", p.AvatarPath)
}

func TestMemoryStoreSlideSetIsImmutable(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemoryStore("")
	require.NoError(t, s.CreatePresentation(ctx, newTestPresentation("p1", 2)))
	_, err := s.UpdatePresentation(ctx, "p1", func(p *Presentation) error {
		p.Slides = p.Slides[:1]
		return nil
	})
	assert.Error(t, err)
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "presentations.json")
	s, err := NewMemoryStore(path)
	require.NoError(t, err)

	p := newTestPresentation("p1", 2)
	p.Slides[1].Audio = &AudioAsset{Path: "a.wav", Duration: 2.5, Language: "vi", Engine: "vieneu"}
	require.NoError(t, s.CreatePresentation(ctx, p))
	require.NoError(t, s.CreateTask(ctx, &Task{ID: "t1", PresentationID: "p1", Status: TaskStatusPending}))
	require.NoError(t, s.Flush(ctx))

	reloaded, err := NewMemoryStore(path)
	require.NoError(t, err)
	got, err := reloaded.GetPresentation(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got.Slides[1].Audio)
	assert.Equal(t, 2.5, got.Slides[1].Audio.Duration)

	task, err := reloaded.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
}

func TestMemoryStoreUpdateTask(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemoryStore("")
	require.NoError(t, s.CreateTask(ctx, &Task{ID: "t1", Status: TaskStatusPending}))
	got, err := s.UpdateTask(ctx, "t1", func(tk *Task) error {
		tk.Status = TaskStatusSuccess
		return nil
	})
	require.NoError(t, err)
	assert.True(t, got.Done())
	_, err = s.UpdateTask(ctx, "nope", func(*Task) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
