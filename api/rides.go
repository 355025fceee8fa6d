package api

import (
	"net/http"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/service/rides"
	"github.com/gin-gonic/gin"
)

type RideHandler struct {
	service rides.RideUseCase
}

type createRideRequest struct {
	Origin        domain.Location `json:"origin"`
	Destination   domain.Location `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	SeatsOffered  int             `json:"seats_offered"`
	PriceCents    int64           `json:"price_cents"`
	Restricted    bool            `json:"restricted"`
	Remark        string          `json:"remark"`
}

type rideResponse struct {
	ID             string          `json:"id"`
	CreatorID      string          `json:"creator_id"`
	Origin         domain.Location `json:"origin"`
	Destination    domain.Location `json:"destination"`
	DepartureTime  string          `json:"departure_time"`
	SeatsOffered   int             `json:"seats_offered"`
	SeatsRemaining int             `json:"seats_remaining"`
	PriceCents     int64           `json:"price_cents"`
	Restricted     bool            `json:"restricted"`
	Remark         string          `json:"remark,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

type myRidesResponse struct {
	Created []rideResponse `json:"created"`
	Joined  []rideResponse `json:"joined"`
}

func NewRideHandler(service rides.RideUseCase) *RideHandler {
	return &RideHandler{service: service}
}

func (h *RideHandler) Register(router *gin.RouterGroup) {
	router.POST("/rides", h.create)
	router.GET("/rides", h.search)
	router.GET("/rides/:id", h.get)
	router.DELETE("/rides/:id", h.delete)
	router.GET("/me/rides", h.mine)
}

func (h *RideHandler) create(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ride, err := h.service.Create(c.Request.Context(), rides.CreateRideInput{
		CreatorID:     UserID(c),
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		SeatsOffered:  req.SeatsOffered,
		PriceCents:    req.PriceCents,
		Restricted:    req.Restricted,
		Remark:        req.Remark,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRideResponse(ride))
}

func (h *RideHandler) search(c *gin.Context) {
	found, err := h.service.Search(c.Request.Context(), rides.SearchInput{
		From: c.Query("from"),
		To:   c.Query("to"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponses(found))
}

func (h *RideHandler) get(c *gin.Context) {
	ride, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(ride))
}

func (h *RideHandler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RideHandler) mine(c *gin.Context) {
	mine, err := h.service.MyRides(c.Request.Context(), UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, myRidesResponse{
		Created: toRideResponses(mine.Created),
		Joined:  toRideResponses(mine.Joined),
	})
}

func toRideResponse(r *domain.Ride) rideResponse {
	return rideResponse{
		ID:             r.ID,
		CreatorID:      r.CreatorID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		DepartureTime:  r.DepartureTime.Format(time.RFC3339),
		SeatsOffered:   r.SeatsOffered,
		SeatsRemaining: r.SeatsRemaining,
		PriceCents:     r.PriceCents,
		Restricted:     r.Restricted,
		Remark:         r.Remark,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toRideResponses(list []domain.Ride) []rideResponse {
	out := make([]rideResponse, 0, len(list))
	for i := range list {
		out = append(out, toRideResponse(&list[i]))
	}
	return out
}
