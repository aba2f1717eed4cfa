package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/eventsignup/internal/app/models/dto"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/middleware"
)

// ReminderController triggers reminder passes by hand
type ReminderController struct {
	reminderService services.ReminderService
	clock           window.Clock
}

// NewReminderController creates a new ReminderController
func NewReminderController(reminderService services.ReminderService, clock window.Clock) *ReminderController {
	if clock == nil {
		clock = window.SystemClock{}
	}
	return &ReminderController{
		reminderService: reminderService,
		clock:           clock,
	}
}

// RunTick runs one reminder pass
// @Summary Run a reminder tick
// @Description Sends every reminder due at now (defaults to the current time). Already reminded attendees are skipped.
// @Tags reminders
// @Accept json
// @Produce json
// @Param request body dto.ReminderTickRequest false "Instant to run at"
// @Success 200 {object} dto.APIResponse{data=services.TickResult} "Tick finished"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /reminders/tick [post]
func (c *ReminderController) RunTick(ctx *gin.Context) {
	var req dto.ReminderTickRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			middleware.HandleBindingError(ctx, "Invalid tick request", err)
			return
		}
	}

	now := c.clock.Now()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	result, err := c.reminderService.RunTick(ctx, now)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(result))
}
