package api

import (
	"net/http"

	"SlideToVideo-server/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetSlides(c *gin.Context) {
	view, err := h.Pipeline.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"presentation_id": view.Presentation.ID,
		"slides":          view.Presentation.Slides,
		"total_slides":    len(view.Presentation.Slides),
		"stage":           view.Stage,
	})
}

func (h *Handler) GetSlide(c *gin.Context) {
	index, ok := slideIndex(c)
	if !ok {
		return
	}
	s, err := h.Pipeline.SlideStatus(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slide": s, "script": s.Script()})
}

// UpdateScript saves the user's script for a slide. Its audio and clip are dropped.
func (h *Handler) UpdateScript(c *gin.Context) {
	index, ok := slideIndex(c)
	if !ok {
		return
	}
	var req struct {
		Script string `json:"script"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Pipeline.EditScript(c.Request.Context(), c.Param("id"), index, req.Script)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slide": s, "script": s.Script()})
}

// EnhanceScript rewrites the slide's script following an instruction and saves it as
// the user's edit: POST .../slides/:index/enhance
func (h *Handler) EnhanceScript(c *gin.Context) {
	index, ok := slideIndex(c)
	if !ok {
		return
	}
	var req struct {
		Instruction string `json:"instruction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Pipeline.EnhanceScript(c.Request.Context(), c.Param("id"), index, req.Instruction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slide": s, "script": s.Script()})
}

type regenerateRequest struct {
	Stage    string            `json:"stage" binding:"required"`
	Feedback string            `json:"feedback"`
	TTS      *models.TTSParams `json:"tts"`
}

// RegenerateSlide queues a rerun of one stage: POST .../slides/:index/regenerate
func (h *Handler) RegenerateSlide(c *gin.Context) {
	index, ok := slideIndex(c)
	if !ok {
		return
	}
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := models.ParseSlideStage(req.Stage)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.Pipeline.SlideStatus(c.Request.Context(), c.Param("id"), index); err != nil {
		respondError(c, err)
		return
	}
	params := taskParams(nil, req.TTS, false, nil)
	params.Stage = stage
	params.Feedback = req.Feedback
	h.submit(c, c.Param("id"), models.TaskTypeRegenerate, index, params)
}
