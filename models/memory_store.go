package models

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"SlideToVideo-server/logger"
)

type presentationEntry struct {
	mu     sync.Mutex // presentation-level fields
	slides map[int]*sync.Mutex
	pos    map[int]int // slide index -> position in p.Slides
	p      *Presentation
}

// MemoryStore keeps everything in process memory and can snapshot to a JSON file.
type MemoryStore struct {
	mu            sync.RWMutex
	presentations map[string]*presentationEntry
	tasks         map[string]*Task
	taskMu        sync.Mutex

	snapshotPath string
}

type snapshot struct {
	Presentations []*Presentation `json:"presentations"`
	Tasks         []*Task         `json:"tasks"`
	SavedAt       time.Time       `json:"saved_at"`
}

// NewMemoryStore returns a store backed by snapshotPath. An empty path disables
// persistence; an existing snapshot is loaded.
func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	s := &MemoryStore{
		presentations: make(map[string]*presentationEntry),
		tasks:         make(map[string]*Task),
		snapshotPath:  snapshotPath,
	}
	if snapshotPath == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func newEntry(p *Presentation) *presentationEntry {
	e := &presentationEntry{
		p:      p,
		slides: make(map[int]*sync.Mutex, len(p.Slides)),
		pos:    make(map[int]int, len(p.Slides)),
	}
	for i, sl := range p.Slides {
		e.slides[sl.Index] = &sync.Mutex{}
		e.pos[sl.Index] = i
	}
	return e
}

// lockAll takes the presentation lock then every slide lock in index order.
func (e *presentationEntry) lockAll() func() {
	e.mu.Lock()
	idx := make([]int, 0, len(e.slides))
	for i := range e.slides {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		e.slides[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			e.slides[idx[j]].Unlock()
		}
		e.mu.Unlock()
	}
}

func (s *MemoryStore) entry(id string) (*presentationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.presentations[id]
	if !ok {
		return nil, fmt.Errorf("presentation %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) CreatePresentation(ctx context.Context, p *Presentation) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presentations[p.ID]; ok {
		return fmt.Errorf("presentation %s already exists", p.ID)
	}
	s.presentations[p.ID] = newEntry(p.Clone())
	return nil
}

func (s *MemoryStore) GetPresentation(ctx context.Context, id string) (*Presentation, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	unlock := e.lockAll()
	defer unlock()
	return e.p.Clone(), nil
}

func (s *MemoryStore) ListPresentations(ctx context.Context) ([]*Presentation, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.presentations))
	for id := range s.presentations {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]*Presentation, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPresentation(ctx, id)
		if err != nil {
			continue // deleted concurrently
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeletePresentation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presentations[id]; !ok {
		return fmt.Errorf("presentation %s: %w", id, ErrNotFound)
	}
	delete(s.presentations, id)
	return nil
}

// UpdatePresentation runs fn on a working copy and commits it only when fn succeeds.
// The slide set itself is fixed at creation.
func (s *MemoryStore) UpdatePresentation(ctx context.Context, id string, fn func(p *Presentation) error) (*Presentation, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	unlock := e.lockAll()
	defer unlock()

	work := e.p.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	if len(work.Slides) != len(e.p.Slides) {
		return nil, fmt.Errorf("presentation %s: slide set is immutable", id)
	}
	for i := range work.Slides {
		if work.Slides[i].Index != e.p.Slides[i].Index {
			return nil, fmt.Errorf("presentation %s: slide set is immutable", id)
		}
	}
	work.ID = e.p.ID
	work.UpdatedAt = time.Now()
	e.p = work
	return work.Clone(), nil
}

func (s *MemoryStore) UpdateSlide(ctx context.Context, id string, index int, fn func(sl *Slide) error) (*Slide, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	lock, ok := e.slides[index]
	if !ok {
		return nil, fmt.Errorf("presentation %s slide %d: %w", id, index, ErrNotFound)
	}
	lock.Lock()
	defer lock.Unlock()

	// e.p is only swapped under lockAll, which also needs this slide lock.
	target := &e.p.Slides[e.pos[index]]
	work := target.Clone()
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.Index = index
	work.UpdatedAt = time.Now()
	*target = work
	out := work.Clone()
	return &out, nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, t *Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	c := *t
	s.tasks[t.ID] = &c
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*Task, error) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	c := *t
	return &c, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, id string, fn func(t *Task) error) (*Task, error) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	work := *t
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now()
	s.tasks[id] = &work
	c := work
	return &c, nil
}

// Flush writes a snapshot atomically: temp file in the same directory, then rename.
func (s *MemoryStore) Flush(ctx context.Context) error {
	if s.snapshotPath == "" {
		return nil
	}
	snap := snapshot{SavedAt: time.Now()}
	var err error
	if snap.Presentations, err = s.ListPresentations(ctx); err != nil {
		return err
	}
	s.taskMu.Lock()
	for _, t := range s.tasks {
		c := *t
		snap.Tasks = append(snap.Tasks, &c)
	}
	s.taskMu.Unlock()
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].CreatedAt.Before(snap.Tasks[j].CreatedAt) })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	dir := filepath.Dir(s.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.snapshotPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// StartAutoFlush flushes every interval until ctx is done, then flushes once more.
func (s *MemoryStore) StartAutoFlush(ctx context.Context, interval time.Duration) {
	if s.snapshotPath == "" || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := s.Flush(context.Background()); err != nil {
					logger.ErrorCF("store", "final snapshot flush failed", map[string]any{"error": err.Error()})
				}
				return
			case <-ticker.C:
				if err := s.Flush(ctx); err != nil {
					logger.WarnCF("store", "snapshot flush failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", s.snapshotPath, err)
	}
	for _, p := range snap.Presentations {
		s.presentations[p.ID] = newEntry(p)
	}
	for _, t := range snap.Tasks {
		s.tasks[t.ID] = t
	}
	logger.InfoCF("store", "snapshot loaded", map[string]any{
		"presentations": len(snap.Presentations),
		"tasks":         len(snap.Tasks),
	})
	return nil
}
