package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/regions", handler.GetRegionTotals)
		apiGroup.GET("/districts/:regionId", handler.GetDistrictTotals)
		apiGroup.GET("/suburbs/:districtId", handler.GetSuburbTotals)
		apiGroup.GET("/locations", handler.GetLocations)
		apiGroup.GET("/summary", handler.GetSummary)
		apiGroup.GET("/history", handler.GetHistory)
		apiGroup.POST("/collect", handler.TriggerCollection)
	}

	return router
}
