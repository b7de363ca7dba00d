package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-platform/internal/booking"
	"consult-platform/internal/middleware"
	"consult-platform/internal/models"
)

type BookingHandler struct {
	Manager *booking.Manager
}

func NewBookingHandler(manager *booking.Manager) *BookingHandler {
	return &BookingHandler{Manager: manager}
}

type CreateBookingRequest struct {
	CreatorID        string `json:"creator_id" binding:"required"`
	Date             string `json:"date" binding:"required"`
	Time             string `json:"time" binding:"required"`
	DurationMinutes  int64  `json:"duration_minutes" binding:"required,gt=0"`
	ConsultationType string `json:"consultation_type" binding:"required"`
	PaymentType      string `json:"payment_type" binding:"required"`
	IsGift           bool   `json:"is_gift"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	b, err := h.Manager.Create(c.Request.Context(), booking.CreateRequest{
		CreatorID:        req.CreatorID,
		RequesterID:      middleware.AccountID(c),
		Date:             req.Date,
		Time:             req.Time,
		DurationMinutes:  req.DurationMinutes,
		ConsultationType: models.ConsultationType(req.ConsultationType),
		PaymentType:      models.PaymentType(req.PaymentType),
		IsGift:           req.IsGift,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	b, err := h.Manager.Cancel(c.Request.Context(), c.Param("id"), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Complete(c *gin.Context) {
	b, err := h.Manager.Complete(c.Request.Context(), c.Param("id"), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ListUpcoming(c *gin.Context) {
	list, err := h.Manager.ListUpcoming(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) ListHistory(c *gin.Context) {
	list, err := h.Manager.ListHistory(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
