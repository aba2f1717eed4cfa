package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/eventsignup/internal/app/controllers"
	"github.com/yigit/eventsignup/internal/app/models/dto"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	eventController *controllers.EventController,
	rsvpController *controllers.RsvpController,
	reminderController *controllers.ReminderController,
) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.APIResponse{
			Data:      gin.H{"message": "pong"},
			Timestamp: time.Now(),
		})
	})

	// API version group
	v1 := router.Group("/api/v1")

	events := v1.Group("/events")
	{
		events.GET("", eventController.ListEvents)
		events.POST("", eventController.SubmitEvent)
		events.GET("/:id", eventController.GetEvent)
		events.PUT("/:id", eventController.UpdateEvent)
		events.POST("/:id/approve", eventController.ApproveEvent)

		events.GET("/:id/rsvps", rsvpController.ListRsvps)
		events.POST("/:id/rsvps", rsvpController.Signup)
	}

	rsvps := v1.Group("/rsvps")
	{
		rsvps.GET("/:id", rsvpController.GetRsvp)
		rsvps.DELETE("/:id", rsvpController.Cancel)
		rsvps.PUT("/:id/sessions", rsvpController.EditSessions)
		rsvps.PUT("/:id/role", rsvpController.ChangeRole)
	}

	reminders := v1.Group("/reminders")
	{
		reminders.POST("/tick", reminderController.RunTick)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Route not found"),
		))
	})
}
