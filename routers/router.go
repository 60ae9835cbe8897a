package routers

import (
	"SlideToVideo-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter(h *api.Handler, staticURL, staticRoot string) *gin.Engine {
	r := gin.Default()
	r.Static(staticURL, staticRoot)
	v1 := r.Group("/v1/api")
	{
		v1.POST("/presentations", h.CreatePresentation)
		v1.GET("/presentations", h.ListPresentations)
		v1.GET("/presentations/:id", h.GetPresentation)
		v1.DELETE("/presentations/:id", h.DeletePresentation)
		v1.POST("/presentations/:id/avatar", h.UploadAvatar)

		v1.POST("/presentations/:id/run", h.Run)
		v1.POST("/presentations/:id/scripts", h.GenerateScripts)
		v1.POST("/presentations/:id/tts", h.GenerateAudio)
		v1.POST("/presentations/:id/clips", h.ComposeClips)
		v1.POST("/presentations/:id/assemble", h.Assemble)

		v1.GET("/presentations/:id/slides", h.GetSlides)
		v1.GET("/presentations/:id/slides/:index", h.GetSlide)
		v1.PUT("/presentations/:id/slides/:index/script", h.UpdateScript)
		v1.POST("/presentations/:id/slides/:index/regenerate", h.RegenerateSlide)
		v1.POST("/presentations/:id/slides/:index/enhance", h.EnhanceScript)

		v1.GET("/tts/languages", h.Languages)
		v1.GET("/tts/voices", h.Voices)
		v1.GET("/tasks/:task_id", h.GetTaskStatus)
		v1.POST("/tasks/:task_id/cancel", h.CancelTask)
	}
	r.GET("/tasks/:task_id/wss", h.TaskProgressWebSocket)
	r.GET("/presentations/:id/events/wss", h.PresentationEvents)
	return r
}
