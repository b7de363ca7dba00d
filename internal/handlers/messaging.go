package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-platform/internal/messaging"
	"consult-platform/internal/middleware"
)

type MessagingHandler struct {
	Dispatcher *messaging.Dispatcher
}

func NewMessagingHandler(dispatcher *messaging.Dispatcher) *MessagingHandler {
	return &MessagingHandler{Dispatcher: dispatcher}
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
	BookingID  string `json:"booking_id"`
}

func (h *MessagingHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	msg, err := h.Dispatcher.Send(c.Request.Context(), middleware.AccountID(c), req.ReceiverID, req.Content, req.BookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessagingHandler) ListConversations(c *gin.Context) {
	list, err := h.Dispatcher.Conversations(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessagingHandler) MarkConversationRead(c *gin.Context) {
	err := h.Dispatcher.MarkConversationRead(c.Request.Context(), middleware.AccountID(c), c.Param("partnerId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MessagingHandler) ListNotifications(c *gin.Context) {
	list, err := h.Dispatcher.Notifications(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessagingHandler) MarkNotificationRead(c *gin.Context) {
	err := h.Dispatcher.MarkNotificationRead(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
