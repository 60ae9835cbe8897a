package api

import (
	"net/http"

	"SlideToVideo-server/models"

	"github.com/gin-gonic/gin"
)

// Upload a deck: POST /v1/api/presentations (multipart field "file")
func (h *Handler) CreatePresentation(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file: " + err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	pres, err := h.Pipeline.Ingest(c.Request.Context(), fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"presentation_id": pres.ID,
		"filename":        pres.Filename,
		"total_slides":    len(pres.Slides),
		"slides":          pres.Slides,
	})
}

func (h *Handler) ListPresentations(c *gin.Context) {
	list, err := h.Pipeline.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, p := range list {
		out = append(out, gin.H{
			"id":           p.ID,
			"filename":     p.Filename,
			"total_slides": len(p.Slides),
			"stage":        p.Aggregate().String(),
			"created_at":   p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"presentations": out})
}

// GetPresentation returns the presentation with its aggregate stage.
func (h *Handler) GetPresentation(c *gin.Context) {
	view, err := h.Pipeline.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) DeletePresentation(c *gin.Context) {
	if err := h.Pipeline.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// UploadAvatar stores the talking-head portrait: POST /v1/api/presentations/:id/avatar
func (h *Handler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file: " + err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	pres, err := h.Pipeline.SetAvatar(c.Request.Context(), c.Param("id"), fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presentation_id": pres.ID, "avatar": pres.AvatarPath})
}

type assembleRequest struct {
	UseTalkingHead bool  `json:"use_talking_head"`
	Skip           []int `json:"skip"`
}

// Assemble queues final video assembly: POST /v1/api/presentations/:id/assemble
func (h *Handler) Assemble(c *gin.Context) {
	var req assembleRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.submit(c, c.Param("id"), models.TaskTypeAssemble, 0, taskParams(nil, nil, req.UseTalkingHead, req.Skip))
}
