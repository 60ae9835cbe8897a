package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Task statuses.
const (
	// pending: queued, waiting for a worker
	TaskStatusPending = "pending"
	// processing: a worker is running it
	TaskStatusProcessing = "processing"
	TaskStatusSuccess    = "finished"
	TaskStatusFailed     = "failed"
	// cancelled: stopped by the user, or superseded by a newer task for the same slide
	TaskStatusCancelled = "cancelled"

	TaskTypeRun        = "run_pipeline"
	TaskTypeScripts    = "generate_scripts"
	TaskTypeAudio      = "generate_audio"
	TaskTypeClips      = "compose_clips"
	TaskTypeRegenerate = "regenerate"
	TaskTypeAssemble   = "assemble"
)

type Task struct {
	ID             string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PresentationID string         `gorm:"type:varchar(64);index" json:"presentationId"`
	SlideIndex     int            `json:"slideIndex,omitempty"`
	Type           string         `gorm:"type:varchar(32)" json:"type"`
	Status         string         `gorm:"type:varchar(16)" json:"status"`
	Progress       int            `json:"progress"`
	Message        string         `json:"message"`
	Parameters     TaskParameters `gorm:"type:json" json:"parameters"`
	Result         TaskResult     `gorm:"type:json" json:"result"`
	Error          string         `gorm:"type:text" json:"error"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (Task) TableName() string {
	return "task"
}

// Done reports whether the task reached a terminal status.
func (t *Task) Done() bool {
	switch t.Status {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

type TaskParameters struct {
	Stage  Stage      `json:"stage,omitempty"`
	Slides []int      `json:"slides,omitempty"`
	TTS    *TTSParams `json:"tts,omitempty"`
	// Feedback steers script regeneration.
	Feedback       string `json:"feedback,omitempty"`
	UseTalkingHead bool   `json:"use_talking_head,omitempty"`
	Skip           []int  `json:"skip,omitempty"`
}

type TTSParams struct {
	Voice         string `json:"voice,omitempty"`
	CloneRef      string `json:"clone_ref,omitempty"`
	ForceFallback bool   `json:"force_fallback,omitempty"`
}

// TaskResult keeps the per-stage reports and the location of the final output.
type TaskResult struct {
	Summary  string        `json:"summary,omitempty"`
	Reports  []StageReport `json:"reports,omitempty"`
	VideoURL string        `json:"video_url,omitempty"`
	AudioURL string        `json:"audio_url,omitempty"`
}

// Value stores TaskParameters as a JSON column.
func (p TaskParameters) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *TaskParameters) Scan(value interface{}) error {
	return scanJSON(value, p)
}

func (r TaskResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *TaskResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unmarshal json column: unsupported type %T", value)
	}
}
