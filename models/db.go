package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SlideToVideo-server/logger"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InitDB opens the MySQL pool and wraps it with GORM.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("init gorm: %w", err)
	}
	logger.InfoCF("db", "database connected", nil)
	return gdb, nil
}

type presentationRecord struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Filename    string
	SourcePath  string
	Type        string `gorm:"type:varchar(16)"`
	AvatarPath  string
	MergedAudio []byte `gorm:"type:json"`
	FinalVideo  []byte `gorm:"type:json"`
	Excluded    []byte `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (presentationRecord) TableName() string { return "presentation" }

type slideRecord struct {
	PresentationID  string `gorm:"primaryKey;type:varchar(64)"`
	SlideIndex      int    `gorm:"primaryKey;autoIncrement:false"`
	Content         string `gorm:"type:text"`
	Notes           string `gorm:"type:text"`
	ImagePath       string
	GeneratedScript string `gorm:"type:text"`
	EditedScript    string `gorm:"type:text"`
	Audio           []byte `gorm:"type:json"`
	StyledImagePath string
	Clip            []byte `gorm:"type:json"`
	Status          string `gorm:"type:varchar(16)"`
	FailedStage     string `gorm:"type:varchar(16)"`
	Error           string `gorm:"type:text"`
	UpdatedAt       time.Time
}

func (slideRecord) TableName() string { return "slide" }

// GormStore persists presentations in MySQL. Slide updates lock a single row with
// SELECT ... FOR UPDATE.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&presentationRecord{}, &slideRecord{}, &Task{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func marshalOptional(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func unmarshalOptional[T any](b []byte) *T {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return &v
}

func toPresentationRecord(p *Presentation) presentationRecord {
	rec := presentationRecord{
		ID:         p.ID,
		Filename:   p.Filename,
		SourcePath: p.SourcePath,
		Type:       p.Type,
		AvatarPath: p.AvatarPath,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.MergedAudio != nil {
		rec.MergedAudio = marshalOptional(p.MergedAudio)
	}
	if p.FinalVideo != nil {
		rec.FinalVideo = marshalOptional(p.FinalVideo)
	}
	rec.Excluded = marshalOptional(p.Excluded)
	return rec
}

func (r *presentationRecord) toPresentation(slides []slideRecord) *Presentation {
	p := &Presentation{
		ID:          r.ID,
		Filename:    r.Filename,
		SourcePath:  r.SourcePath,
		Type:        r.Type,
		AvatarPath:  r.AvatarPath,
		MergedAudio: unmarshalOptional[Artifact](r.MergedAudio),
		FinalVideo:  unmarshalOptional[Artifact](r.FinalVideo),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if ex := unmarshalOptional[[]int](r.Excluded); ex != nil {
		p.Excluded = *ex
	}
	p.Slides = make([]Slide, 0, len(slides))
	for i := range slides {
		p.Slides = append(p.Slides, slides[i].toSlide())
	}
	return p
}

func toSlideRecord(presentationID string, s *Slide) slideRecord {
	rec := slideRecord{
		PresentationID:  presentationID,
		SlideIndex:      s.Index,
		Content:         s.Content,
		Notes:           s.Notes,
		ImagePath:       s.ImagePath,
		GeneratedScript: s.GeneratedScript,
		EditedScript:    s.EditedScript,
		StyledImagePath: s.StyledImagePath,
		Status:          string(s.Status),
		FailedStage:     string(s.FailedStage),
		Error:           s.Error,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Audio != nil {
		rec.Audio = marshalOptional(s.Audio)
	}
	if s.Clip != nil {
		rec.Clip = marshalOptional(s.Clip)
	}
	return rec
}

func (r *slideRecord) toSlide() Slide {
	return Slide{
		Index:           r.SlideIndex,
		Content:         r.Content,
		Notes:           r.Notes,
		ImagePath:       r.ImagePath,
		GeneratedScript: r.GeneratedScript,
		EditedScript:    r.EditedScript,
		Audio:           unmarshalOptional[AudioAsset](r.Audio),
		StyledImagePath: r.StyledImagePath,
		Clip:            unmarshalOptional[StyledClip](r.Clip),
		Status:          SlideStatus(r.Status),
		FailedStage:     Stage(r.FailedStage),
		Error:           r.Error,
		UpdatedAt:       r.UpdatedAt,
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func (s *GormStore) CreatePresentation(ctx context.Context, p *Presentation) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toPresentationRecord(p)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if len(p.Slides) == 0 {
			return nil
		}
		slides := make([]slideRecord, 0, len(p.Slides))
		for i := range p.Slides {
			slides = append(slides, toSlideRecord(p.ID, &p.Slides[i]))
		}
		return tx.Create(&slides).Error
	})
}

func (s *GormStore) load(tx *gorm.DB, id string, lock bool) (*Presentation, error) {
	query := func() *gorm.DB {
		if lock {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return tx
	}
	var rec presentationRecord
	if err := query().First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "presentation "+id)
	}
	var slides []slideRecord
	if err := query().Where("presentation_id = ?", id).Order("slide_index ASC").Find(&slides).Error; err != nil {
		return nil, err
	}
	return rec.toPresentation(slides), nil
}

func (s *GormStore) GetPresentation(ctx context.Context, id string) (*Presentation, error) {
	return s.load(s.db.WithContext(ctx), id, false)
}

func (s *GormStore) ListPresentations(ctx context.Context) ([]*Presentation, error) {
	var recs []presentationRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*Presentation, 0, len(recs))
	for _, r := range recs {
		p, err := s.GetPresentation(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *GormStore) DeletePresentation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&presentationRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("presentation %s: %w", id, ErrNotFound)
		}
		if err := tx.Delete(&slideRecord{}, "presentation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Task{}, "presentation_id = ?", id).Error
	})
}

func (s *GormStore) UpdatePresentation(ctx context.Context, id string, fn func(p *Presentation) error) (*Presentation, error) {
	var out *Presentation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.load(tx, id, true)
		if err != nil {
			return err
		}
		before := len(p.Slides)
		if err := fn(p); err != nil {
			return err
		}
		if len(p.Slides) != before {
			return fmt.Errorf("presentation %s: slide set is immutable", id)
		}
		p.ID = id
		p.UpdatedAt = time.Now()
		rec := toPresentationRecord(p)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		for i := range p.Slides {
			sr := toSlideRecord(id, &p.Slides[i])
			if err := tx.Save(&sr).Error; err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) UpdateSlide(ctx context.Context, id string, index int, fn func(sl *Slide) error) (*Slide, error) {
	var out Slide
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec slideRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "presentation_id = ? AND slide_index = ?", id, index).Error
		if err != nil {
			return notFound(err, fmt.Sprintf("presentation %s slide %d", id, index))
		}
		sl := rec.toSlide()
		if err := fn(&sl); err != nil {
			return err
		}
		sl.Index = index
		sl.UpdatedAt = time.Now()
		rec = toSlideRecord(id, &sl)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = sl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) CreateTask(ctx context.Context, t *Task) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "task "+id)
	}
	return &t, nil
}

func (s *GormStore) UpdateTask(ctx context.Context, id string, fn func(t *Task) error) (*Task, error) {
	var t Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			return notFound(err, "task "+id)
		}
		if err := fn(&t); err != nil {
			return err
		}
		t.ID = id
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
