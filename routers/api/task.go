package api

import (
	"net/http"
	"time"

	"SlideToVideo-server/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GetTaskStatus: GET /v1/api/tasks/:task_id
func (h *Handler) GetTaskStatus(c *gin.Context) {
	t, err := h.Store.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// CancelTask: POST /v1/api/tasks/:task_id/cancel
func (h *Handler) CancelTask(c *gin.Context) {
	t, err := h.Processor.Cancel(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// TaskProgressWebSocket pushes the task whenever its status or progress changes and
// closes once it reaches a terminal status.
func (h *Handler) TaskProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	ctx := c.Request.Context()
	t, err := h.Store.GetTask(ctx, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnCF("api", "websocket upgrade failed", map[string]any{"task": taskID, "error": err.Error()})
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(t); err != nil || t.Done() {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus, prevProgress, prevMessage := t.Status, t.Progress, t.Message
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur, err := h.Store.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if cur.Status != prevStatus || cur.Progress != prevProgress || cur.Message != prevMessage {
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			prevStatus, prevProgress, prevMessage = cur.Status, cur.Progress, cur.Message
		}
		if cur.Done() {
			return
		}
	}
}

// PresentationEvents streams pipeline events for one presentation until the client
// goes away: GET /presentations/:id/events/wss
func (h *Handler) PresentationEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Store.GetPresentation(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnCF("api", "websocket upgrade failed", map[string]any{"presentation": id, "error": err.Error()})
		return
	}
	defer conn.Close()

	events, stop := h.Hub.Subscribe(id)
	defer stop()

	// Reading is only needed to notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
