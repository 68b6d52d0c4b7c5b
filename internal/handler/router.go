package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/middleware"
)

type RouterDeps struct {
	QA            *QAHandler
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/status", deps.QA.Status)
	api.POST("/reload", deps.QA.Reload)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.ChatRateLimit))
	limited.POST("/chat", deps.QA.Chat)
	limited.POST("/search", deps.QA.Search)
}
