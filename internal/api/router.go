package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter registers every route of the local API under /api/v1.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("ping", h.Ping)
		v1.POST("sync", h.Sync)

		v1.GET("library/:type", h.Library)
		v1.POST("selection/range", h.SelectRange)

		v1.GET("photos/:type/:year/:month", h.Month)
		v1.GET("uploads/:uniqueId", h.Upload)

		photo := v1.Group("photo/:fileId")
		{
			photo.GET("", h.Photo)
			photo.POST("archive", h.mutation(h.Photos.Archive))
			photo.POST("restore", h.mutation(h.Photos.Restore))
			photo.POST("bin", h.mutation(h.Photos.MoveToBin))
			photo.POST("uploaded", h.mutation(h.Photos.RegisterUploaded))
			photo.POST("date", h.SetUserDate)
			photo.POST("tags", h.AddTag)
			photo.DELETE("tags/:tagId", h.RemoveTag)
		}
	}
	return r
}
