package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/repository"
	"github.com/nvoronina/flightbooking/internal/service/booking"
	"github.com/nvoronina/flightbooking/internal/service/flights"
)

type FlightHandler struct {
	service  flights.FlightUseCase
	bookings booking.BookingUseCase
}

func NewFlightHandler(service flights.FlightUseCase, bookings booking.BookingUseCase) *FlightHandler {
	return &FlightHandler{service: service, bookings: bookings}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/seatmap", h.seatMap)
}

// list returns all flights, or a filtered set when any of the src, dst
// or date query parameters is present.
func (h *FlightHandler) list(c *gin.Context) {
	src := c.Query("src")
	dst := c.Query("dst")
	date := c.Query("date")

	if src == "" && dst == "" && date == "" {
		result, err := h.service.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	criteria := repository.SearchCriteria{Src: src, Dst: dst}
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
			return
		}
		criteria.DepartDate = &d
	}

	result, err := h.service.Search(c.Request.Context(), criteria)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) seatMap(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	rows, err := h.bookings.SeatMap(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrFlightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
