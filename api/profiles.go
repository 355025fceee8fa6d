package api

import (
	"net/http"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/service/profiles"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	service profiles.ProfileUseCase
}

type profileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type profileResponse struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

func NewProfileHandler(service profiles.ProfileUseCase) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) Register(router *gin.RouterGroup) {
	router.GET("/profile", h.get)
	router.PUT("/profile", h.put)
}

func (h *ProfileHandler) get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(p))
}

func (h *ProfileHandler) put(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Upsert(c.Request.Context(), profiles.UpsertInput{
		UserID:   UserID(c),
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(p))
}

func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{UserID: p.UserID, FullName: p.FullName, Phone: p.Phone, Email: p.Email}
}
