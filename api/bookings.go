package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	UserID   int64  `json:"user_id"`
	FlightID int64  `json:"flight_id"`
	Seat     string `json:"seat"`
}

type bookingResponse struct {
	BookingRef string  `json:"booking_ref"`
	FlightID   int64   `json:"flight_id"`
	Seat       string  `json:"seat"`
	Status     string  `json:"status"`
	Fare       float64 `json:"fare"`
	Tax        float64 `json:"tax,omitempty"`
	ServiceFee float64 `json:"service_fee,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type cancelResponse struct {
	BookingRef      string  `json:"booking_ref"`
	Status          string  `json:"status"`
	Refund          float64 `json:"refund"`
	AlreadyCanceled bool    `json:"already_canceled"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.DELETE("/:ref", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Book(c.Request.Context(), booking.BookInput{
		UserID:   req.UserID,
		FlightID: req.FlightID,
		Seat:     req.Seat,
	})
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	b := result.Booking
	c.JSON(http.StatusCreated, bookingResponse{
		BookingRef: b.BookingRef,
		FlightID:   b.FlightID,
		Seat:       b.Seat,
		Status:     string(b.Status),
		Fare:       b.Fare,
		Tax:        result.Fare.Tax,
		ServiceFee: result.Fare.Fee,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) list(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	bookings, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), c.Param("ref"), userID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cancelResponse{
		BookingRef:      result.Booking.BookingRef,
		Status:          string(result.Booking.Status),
		Refund:          result.Refund,
		AlreadyCanceled: result.AlreadyCanceled,
	})
}

func bookingErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlightNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSeatFormat), errors.Is(err, domain.ErrSeatOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSeatTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
