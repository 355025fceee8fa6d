package api

import (
	"net/http"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/service/requests"
	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	service requests.RequestUseCase
}

type requestResponse struct {
	ID          string  `json:"id"`
	RideID      string  `json:"ride_id"`
	RequesterID string  `json:"requester_id"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	RespondedAt *string `json:"responded_at,omitempty"`
}

type requesterResponse struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

type requestViewResponse struct {
	requestResponse
	Requester requesterResponse `json:"requester"`
}

type statusResponse struct {
	Status  string           `json:"status"`
	Request *requestResponse `json:"request,omitempty"`
}

// statusNone is reported when the caller never applied to the ride.
const statusNone = "none"

func NewRequestHandler(service requests.RequestUseCase) *RequestHandler {
	return &RequestHandler{service: service}
}

func (h *RequestHandler) Register(router *gin.RouterGroup) {
	router.POST("/rides/:id/requests", h.submit)
	router.GET("/rides/:id/requests", h.list)
	router.GET("/rides/:id/request", h.status)
	router.POST("/rides/:id/requests/:requester/approve", h.approve)
	router.POST("/rides/:id/requests/:requester/reject", h.reject)
}

func (h *RequestHandler) submit(c *gin.Context) {
	jr, err := h.service.Submit(c.Request.Context(), c.Param("id"), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRequestResponse(jr))
}

func (h *RequestHandler) list(c *gin.Context) {
	seq, err := h.service.List(c.Request.Context(), c.Param("id"), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]requestViewResponse, 0)
	for view, err := range seq {
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, requestViewResponse{
			requestResponse: toRequestResponse(&view.JoinRequest),
			Requester: requesterResponse{
				UserID:   view.Requester.UserID,
				FullName: view.Requester.FullName,
				Phone:    view.Requester.Phone,
				Email:    view.Requester.Email,
			},
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) status(c *gin.Context) {
	jr, err := h.service.Status(c.Request.Context(), c.Param("id"), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if jr == nil {
		c.JSON(http.StatusOK, statusResponse{Status: statusNone})
		return
	}
	resp := toRequestResponse(jr)
	c.JSON(http.StatusOK, statusResponse{Status: resp.Status, Request: &resp})
}

func (h *RequestHandler) approve(c *gin.Context) {
	jr, err := h.service.Approve(c.Request.Context(), c.Param("id"), c.Param("requester"), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(jr))
}

func (h *RequestHandler) reject(c *gin.Context) {
	jr, err := h.service.Reject(c.Request.Context(), c.Param("id"), c.Param("requester"), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(jr))
}

func toRequestResponse(jr *domain.JoinRequest) requestResponse {
	resp := requestResponse{
		ID:          jr.ID,
		RideID:      jr.RideID,
		RequesterID: jr.RequesterID,
		Status:      string(jr.Status),
		CreatedAt:   jr.CreatedAt.Format(time.RFC3339),
	}
	if jr.RespondedAt != nil {
		at := jr.RespondedAt.Format(time.RFC3339)
		resp.RespondedAt = &at
	}
	return resp
}
