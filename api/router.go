package api

import "github.com/gin-gonic/gin"

func NewRouter(auth *AuthHandler, flights *FlightHandler, bookings *BookingHandler) *gin.Engine {
	router := gin.Default()

	auth.Register(router.Group("/auth"))
	flights.Register(router.Group("/flights"))
	bookings.Register(router.Group("/bookings"))

	return router
}
