package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/blob"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/service"
)

// Handlers binds the core services to the HTTP surface.
type Handlers struct {
	conversations service.ConversationService
	hires         service.HireService
	reviews       service.ReviewService
	hub           *service.NotificationHub
	blobs         blob.Store
	logger        *logrus.Logger
}

func NewHandlers(
	conversations service.ConversationService,
	hires service.HireService,
	reviews service.ReviewService,
	hub *service.NotificationHub,
	blobs blob.Store,
	logger *logrus.Logger,
) *Handlers {
	return &Handlers{
		conversations: conversations,
		hires:         hires,
		reviews:       reviews,
		hub:           hub,
		blobs:         blobs,
		logger:        logger,
	}
}

type resolveConversationRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

func (h *Handlers) resolveConversation(c *gin.Context) {
	var req resolveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.Resolve(c.Request.Context(), callerID(c), req.PeerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handlers) listConversations(c *gin.Context) {
	conversations, err := h.conversations.ListForUser(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handlers) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.conversations.SendMessage(c.Request.Context(), c.Param("id"), callerID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) listMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		// Non-numeric limits fall back to the service default.
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := h.conversations.ListMessages(
		c.Request.Context(), c.Param("id"), callerID(c), limit, c.Query("before"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handlers) markConversationRead(c *gin.Context) {
	marked, err := h.conversations.MarkConversationRead(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (h *Handlers) markAllRead(c *gin.Context) {
	marked, err := h.conversations.MarkAllRead(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

type createHireRequest struct {
	ServiceID  string `json:"service_id" binding:"required"`
	ProviderID string `json:"provider_id" binding:"required"`
}

func (h *Handlers) createHire(c *gin.Context) {
	var req createHireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hire, err := h.hires.Create(c.Request.Context(), req.ServiceID, callerID(c), req.ProviderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hire)
}

func (h *Handlers) getHire(c *gin.Context) {
	hire, err := h.hires.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if hire.ClientID != callerID(c) && hire.ProviderID != callerID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this hire"})
		return
	}
	c.JSON(http.StatusOK, hire)
}

func (h *Handlers) acceptHire(c *gin.Context)   { h.transitionHire(c, h.hires.Accept) }
func (h *Handlers) rejectHire(c *gin.Context)   { h.transitionHire(c, h.hires.Reject) }
func (h *Handlers) completeHire(c *gin.Context) { h.transitionHire(c, h.hires.Complete) }

func (h *Handlers) transitionHire(c *gin.Context, op func(ctx context.Context, hireID, actorID string) (*models.Hire, error)) {
	hire, err := op(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hire)
}

type submitReviewRequest struct {
	HireID  string   `json:"hire_id" binding:"required"`
	Rating  int      `json:"rating" binding:"required"`
	Comment string   `json:"comment"`
	Photos  []string `json:"photos"`
}

func (h *Handlers) submitReview(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.reviews.Submit(c.Request.Context(), service.SubmitReviewInput{
		HireID:   req.HireID,
		ClientID: callerID(c),
		Rating:   req.Rating,
		Comment:  req.Comment,
		Photos:   req.Photos,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handlers) listServiceReviews(c *gin.Context) {
	reviews, err := h.reviews.ListForService(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *Handlers) notificationCounts(c *gin.Context) {
	counter, err := h.hub.Acquire(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.hub.Release(callerID(c))

	c.JSON(http.StatusOK, counter.Snapshot())
}

func (h *Handlers) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	ref, err := h.blobs.Put(c.Request.Context(), file.Filename, f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store upload")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}
