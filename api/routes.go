package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api/v1")
	{
		api.GET("/telemetry", h.GetTelemetry)
		api.POST("/chat", h.PostChat)

		devicesGroup := api.Group("/devices")
		{
			devicesGroup.GET("", h.ListDevices)
			devicesGroup.GET("/:device_id", h.GetDevice)
			devicesGroup.POST("/:device_id/toggle", h.PostToggle)
		}
	}
}
