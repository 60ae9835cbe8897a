package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
	"SlideToVideo-server/pipeline"
	"SlideToVideo-server/service"
	"SlideToVideo-server/tts"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler carries what the HTTP handlers need. Long-running work is stored as a task
// and handed to Queue; only cheap edits run inside the request.
type Handler struct {
	Pipeline  *pipeline.Pipeline
	Store     models.Store
	Queue     service.Enqueuer
	Processor *service.Processor
	Hub       *service.Hub
	// Speech lists preset voices; nil when no engine is configured.
	Speech *tts.Selector
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStage),
		errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNoValidClips), errors.Is(err, models.ErrMissingAsset),
		errors.Is(err, models.ErrStale):
		return http.StatusConflict
	case errors.Is(err, models.ErrExternalProcess), errors.Is(err, models.ErrAllEnginesExhausted):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error(), "kind": models.Kind(err)}
	var serr *models.StageError
	if errors.As(err, &serr) {
		body["stage"] = serr.Stage
		if serr.Index > 0 {
			body["slide"] = serr.Index
		}
	}
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorCF("api", "request failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
	}
	c.JSON(code, body)
}

func slideIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slide index must be a positive integer"})
		return 0, false
	}
	return index, true
}

// submit stores a task and queues it. A task that cannot be queued is marked failed.
func (h *Handler) submit(c *gin.Context, presentationID, typ string, slide int, params models.TaskParameters) {
	ctx := c.Request.Context()
	if _, err := h.Store.GetPresentation(ctx, presentationID); err != nil {
		respondError(c, err)
		return
	}
	now := time.Now()
	task := &models.Task{
		ID:             uuid.NewString(),
		PresentationID: presentationID,
		SlideIndex:     slide,
		Type:           typ,
		Status:         models.TaskStatusPending,
		Message:        "queued",
		Parameters:     params,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.Store.CreateTask(ctx, task); err != nil {
		respondError(c, err)
		return
	}
	if err := h.Queue.Enqueue(ctx, task.ID); err != nil {
		logger.ErrorCF("api", "enqueue failed", map[string]any{"task": task.ID, "error": err.Error()})
		_, _ = h.Store.UpdateTask(context.WithoutCancel(ctx), task.ID, func(t *models.Task) error {
			t.Status = models.TaskStatusFailed
			t.Error = err.Error()
			return nil
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task created but could not be queued", "task_id": task.ID})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"task_id":         task.ID,
		"presentation_id": presentationID,
		"type":            typ,
		"status":          task.Status,
	})
}
