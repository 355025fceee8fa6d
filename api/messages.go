package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/service/chat"
	"github.com/gin-gonic/gin"
)

const pollIntervalHeader = "Poll-Interval"

type MessageHandler struct {
	service      chat.ChatUseCase
	pollInterval time.Duration
}

type postMessageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID        string `json:"id"`
	RideID    string `json:"ride_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func NewMessageHandler(service chat.ChatUseCase, pollInterval time.Duration) *MessageHandler {
	return &MessageHandler{service: service, pollInterval: pollInterval}
}

func (h *MessageHandler) Register(router *gin.RouterGroup) {
	router.GET("/rides/:id/messages", h.list)
	router.POST("/rides/:id/messages", h.post)
}

// list answers a poll. Clients pass the created_at of the newest message
// they hold as `after` and wait Poll-Interval seconds before asking again.
func (h *MessageHandler) list(c *gin.Context) {
	var after time.Time
	if raw := c.Query("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, fmt.Errorf("after must be an RFC3339 timestamp: %w", err))
			return
		}
		after = parsed
	}

	msgs, err := h.service.List(c.Request.Context(), c.Param("id"), UserID(c), after)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	c.Header(pollIntervalHeader, strconv.Itoa(int(h.pollInterval.Seconds())))
	c.JSON(http.StatusOK, out)
}

func (h *MessageHandler) post(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.service.Post(c.Request.Context(), c.Param("id"), UserID(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		RideID:    m.RideID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
	}
}
