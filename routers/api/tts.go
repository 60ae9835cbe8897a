package api

import (
	"net/http"

	"SlideToVideo-server/models"
	"SlideToVideo-server/tts"

	"github.com/gin-gonic/gin"
)

type stageRequest struct {
	Slides []int `json:"slides"`
	// narration options, used by the audio stage and full runs
	Voice          string `json:"voice"`
	CloneRef       string `json:"clone_ref"`
	ForceFallback  bool   `json:"force_fallback"`
	UseTalkingHead bool   `json:"use_talking_head"`
	Skip           []int  `json:"skip"`
}

func (r stageRequest) ttsParams() *models.TTSParams {
	if r.Voice == "" && r.CloneRef == "" && !r.ForceFallback {
		return nil
	}
	return &models.TTSParams{Voice: r.Voice, CloneRef: r.CloneRef, ForceFallback: r.ForceFallback}
}

func taskParams(slides []int, t *models.TTSParams, useTalkingHead bool, skip []int) models.TaskParameters {
	return models.TaskParameters{Slides: slides, TTS: t, UseTalkingHead: useTalkingHead, Skip: skip}
}

func bindStage(c *gin.Context) (stageRequest, bool) {
	var req stageRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// Run queues the whole pipeline: POST /v1/api/presentations/:id/run
func (h *Handler) Run(c *gin.Context) {
	req, ok := bindStage(c)
	if !ok {
		return
	}
	h.submit(c, c.Param("id"), models.TaskTypeRun, 0, taskParams(nil, req.ttsParams(), req.UseTalkingHead, req.Skip))
}

func (h *Handler) GenerateScripts(c *gin.Context) {
	req, ok := bindStage(c)
	if !ok {
		return
	}
	h.submit(c, c.Param("id"), models.TaskTypeScripts, 0, taskParams(req.Slides, nil, false, nil))
}

// GenerateAudio queues narration: POST /v1/api/presentations/:id/tts
func (h *Handler) GenerateAudio(c *gin.Context) {
	req, ok := bindStage(c)
	if !ok {
		return
	}
	h.submit(c, c.Param("id"), models.TaskTypeAudio, 0, taskParams(req.Slides, req.ttsParams(), false, nil))
}

func (h *Handler) ComposeClips(c *gin.Context) {
	req, ok := bindStage(c)
	if !ok {
		return
	}
	h.submit(c, c.Param("id"), models.TaskTypeClips, 0, taskParams(req.Slides, nil, false, nil))
}

// Languages lists the narration languages: GET /v1/api/tts/languages
func (h *Handler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": tts.SupportedLanguages(), "default": tts.DefaultLanguage})
}

// Voices lists preset voices per engine: GET /v1/api/tts/voices
func (h *Handler) Voices(c *gin.Context) {
	voices := map[string][]tts.Voice{}
	if h.Speech != nil {
		voices = h.Speech.Voices()
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}
