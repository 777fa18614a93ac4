package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the HTTP surface. Everything under /api/v1 requires the
// trusted identity header; health and metrics do not.
func NewRouter(h *Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(identityRequired())
	{
		v1.POST("/conversations", h.resolveConversation)
		v1.GET("/conversations", h.listConversations)
		v1.GET("/conversations/:id/messages", h.listMessages)
		v1.POST("/conversations/:id/messages", h.sendMessage)
		v1.POST("/conversations/:id/read", h.markConversationRead)
		v1.POST("/read-all", h.markAllRead)

		v1.POST("/hires", h.createHire)
		v1.GET("/hires/:id", h.getHire)
		v1.POST("/hires/:id/accept", h.acceptHire)
		v1.POST("/hires/:id/reject", h.rejectHire)
		v1.POST("/hires/:id/complete", h.completeHire)

		v1.POST("/reviews", h.submitReview)
		v1.GET("/services/:id/reviews", h.listServiceReviews)

		v1.GET("/notifications", h.notificationCounts)
		v1.GET("/ws/notifications", h.notificationStream)

		v1.POST("/uploads", h.upload)
	}

	return r
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request handled")
		}
	}
}
