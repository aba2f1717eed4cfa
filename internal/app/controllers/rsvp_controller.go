package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/models/dto"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/middleware"
)

// RsvpController handles signups, cancellations and rsvp edits
type RsvpController struct {
	rsvpService services.RsvpService
}

// NewRsvpController creates a new RsvpController
func NewRsvpController(rsvpService services.RsvpService) *RsvpController {
	return &RsvpController{
		rsvpService: rsvpService,
	}
}

// Signup handles an rsvp for an event
// @Summary Sign up for an event
// @Description Confirms the attendee, or puts a student on the waitlist when the event is full
// @Tags rsvps
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param request body dto.SignupRequest true "Signup information"
// @Success 201 {object} dto.APIResponse{data=dto.RsvpResponse} "Rsvp created"
// @Failure 400 {object} dto.ErrorResponse "Invalid signup data or unknown session"
// @Failure 403 {object} dto.ErrorResponse "Event is not accepting student rsvps"
// @Failure 404 {object} dto.ErrorResponse "Event not found"
// @Failure 409 {object} dto.ErrorResponse "Attendee already signed up"
// @Router /events/{id}/rsvps [post]
func (c *RsvpController) Signup(ctx *gin.Context) {
	eventID, ok := parseIDParam(ctx, "id", "event")
	if !ok {
		return
	}
	var req dto.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, "Invalid signup data", err)
		return
	}

	rsvp, err := c.rsvpService.Signup(ctx, services.SignupInput{
		EventID:       eventID,
		AttendeeID:    req.AttendeeID,
		AttendeeEmail: req.AttendeeEmail,
		Role:          models.Role(req.Role),
		SessionIDs:    req.SessionIDs,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewDataResponse(dto.NewRsvpResponse(rsvp)))
}

// ListRsvps lists the rsvps of an event, confirmed first then the waitlist in order
// @Summary List event rsvps
// @Tags rsvps
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.RsvpResponse} "Rsvps retrieved"
// @Router /events/{id}/rsvps [get]
func (c *RsvpController) ListRsvps(ctx *gin.Context) {
	eventID, ok := parseIDParam(ctx, "id", "event")
	if !ok {
		return
	}

	rsvps, err := c.rsvpService.ListRsvps(ctx, eventID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewRsvpListResponse(rsvps)))
}

// GetRsvp retrieves one rsvp
// @Summary Get rsvp by ID
// @Tags rsvps
// @Produce json
// @Param id path int true "Rsvp ID"
// @Success 200 {object} dto.APIResponse{data=dto.RsvpResponse} "Rsvp retrieved"
// @Failure 404 {object} dto.ErrorResponse "Rsvp not found"
// @Router /rsvps/{id} [get]
func (c *RsvpController) GetRsvp(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "rsvp")
	if !ok {
		return
	}

	rsvp, err := c.rsvpService.GetRsvp(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewRsvpResponse(rsvp)))
}

// Cancel removes an rsvp, promoting the head of the waitlist when a student slot frees up
// @Summary Cancel an rsvp
// @Tags rsvps
// @Param id path int true "Rsvp ID"
// @Success 204 "Rsvp cancelled"
// @Failure 404 {object} dto.ErrorResponse "Rsvp not found"
// @Router /rsvps/{id} [delete]
func (c *RsvpController) Cancel(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "rsvp")
	if !ok {
		return
	}

	if err := c.rsvpService.Cancel(ctx, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// EditSessions replaces the sessions an rsvp attends
// @Summary Edit rsvp sessions
// @Tags rsvps
// @Accept json
// @Produce json
// @Param id path int true "Rsvp ID"
// @Param request body dto.EditSessionsRequest true "Selected sessions"
// @Success 200 {object} dto.APIResponse{data=dto.RsvpResponse} "Sessions updated"
// @Failure 400 {object} dto.ErrorResponse "Unknown session"
// @Failure 404 {object} dto.ErrorResponse "Rsvp not found"
// @Router /rsvps/{id}/sessions [put]
func (c *RsvpController) EditSessions(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "rsvp")
	if !ok {
		return
	}
	var req dto.EditSessionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, "Invalid session selection", err)
		return
	}

	if err := c.rsvpService.EditSessions(ctx, id, req.SessionIDs); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	rsvp, err := c.rsvpService.GetRsvp(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewRsvpResponse(rsvp)))
}

// ChangeRole moves an rsvp to another role
// @Summary Change rsvp role
// @Tags rsvps
// @Accept json
// @Produce json
// @Param id path int true "Rsvp ID"
// @Param request body dto.ChangeRoleRequest true "New role"
// @Success 200 {object} dto.APIResponse{data=dto.RsvpResponse} "Role changed"
// @Failure 403 {object} dto.ErrorResponse "Event is not accepting student rsvps"
// @Failure 404 {object} dto.ErrorResponse "Rsvp not found"
// @Router /rsvps/{id}/role [put]
func (c *RsvpController) ChangeRole(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "rsvp")
	if !ok {
		return
	}
	var req dto.ChangeRoleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, "Invalid role", err)
		return
	}

	rsvp, err := c.rsvpService.ChangeRole(ctx, id, models.Role(req.Role))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewRsvpResponse(rsvp)))
}
