package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/models/dto"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/middleware"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
)

// EventController handles event submission, approval and listing
type EventController struct {
	eventService services.EventService
}

// NewEventController creates a new EventController
func NewEventController(eventService services.EventService) *EventController {
	return &EventController{
		eventService: eventService,
	}
}

// SubmitEvent handles event submission
// @Summary Submit a new event
// @Description Creates an event and routes it through the publication workflow
// @Tags events
// @Accept json
// @Produce json
// @Param request body dto.SubmitEventRequest true "Event information"
// @Success 201 {object} dto.APIResponse{data=dto.EventResponse} "Event submitted"
// @Failure 400 {object} dto.ErrorResponse "Invalid event data"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /events [post]
func (c *EventController) SubmitEvent(ctx *gin.Context) {
	var req dto.SubmitEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, "Invalid event data", err)
		return
	}

	draft, err := draftFromRequest(req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	event, err := c.eventService.SubmitEvent(ctx, draft, models.CreatorTrust(*req.Trusted))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewDataResponse(dto.NewEventResponse(event)))
}

// ApproveEvent publishes a pending event
// @Summary Approve an event
// @Tags events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.EventResponse} "Event published"
// @Failure 404 {object} dto.ErrorResponse "Event not found"
// @Failure 409 {object} dto.ErrorResponse "Event is not pending approval"
// @Router /events/{id}/approve [post]
func (c *EventController) ApproveEvent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "event")
	if !ok {
		return
	}

	event, err := c.eventService.ApproveEvent(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewEventResponse(event)))
}

// UpdateEvent edits an event
// @Summary Edit an event
// @Tags events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param request body dto.UpdateEventRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.EventResponse} "Event updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid event data"
// @Failure 404 {object} dto.ErrorResponse "Event not found"
// @Router /events/{id} [put]
func (c *EventController) UpdateEvent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "event")
	if !ok {
		return
	}
	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, "Invalid event data", err)
		return
	}

	changes := services.EventChanges{
		Title:                 req.Title,
		TimeZone:              req.TimeZone,
		StudentRsvpLimit:      req.StudentRsvpLimit,
		ClearStudentRsvpLimit: req.ClearStudentRsvpLimit,
		AllowStudentRsvp:      req.AllowStudentRsvp,
	}
	event, err := c.eventService.EditEvent(ctx, id, changes, models.CreatorTrust(*req.Trusted))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewEventResponse(event)))
}

// GetEvent retrieves an event by ID
// @Summary Get event by ID
// @Tags events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.EventResponse} "Event retrieved"
// @Failure 404 {object} dto.ErrorResponse "Event not found"
// @Router /events/{id} [get]
func (c *EventController) GetEvent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "event")
	if !ok {
		return
	}

	event, err := c.eventService.GetEvent(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewDataResponse(dto.NewEventResponse(event)))
}

// ListEvents lists published events
// @Summary List published events
// @Tags events
// @Produce json
// @Param type query string false "upcoming (default), past or all"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=[]dto.EventResponse} "Events retrieved"
// @Failure 400 {object} dto.ErrorResponse "Unknown list type"
// @Router /events [get]
func (c *EventController) ListEvents(ctx *gin.Context) {
	listType := models.EventListType(ctx.DefaultQuery("type", string(models.EventListUpcoming)))

	events, err := c.eventService.ListEvents(ctx, listType)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.NewDataResponse(nil)
	if page, size, ok := helpers.ParsePaginationParams(ctx); ok {
		start, end := helpers.CalculateSliceIndices(page, size, len(events))
		info := helpers.NewPaginationInfo(int64(len(events)), page, size)
		resp.Pagination = &info
		events = events[start:end]
	}
	resp.Data = dto.NewEventListResponse(events)

	ctx.JSON(http.StatusOK, resp)
}

func draftFromRequest(req dto.SubmitEventRequest) (services.EventDraft, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(req.TimeZone); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return services.EventDraft{}, fmt.Errorf("%w: unknown time zone %q", apperrors.ErrValidationFailed, tz)
		}
		loc = parsed
	}

	draft := services.EventDraft{
		Title:            req.Title,
		TimeZone:         req.TimeZone,
		CreatorID:        req.CreatorID,
		CreatorEmail:     req.CreatorEmail,
		StudentRsvpLimit: req.StudentRsvpLimit,
		AllowStudentRsvp: req.AllowStudentRsvp,
		Sessions:         make([]services.SessionDraft, 0, len(req.Sessions)),
	}
	for i, s := range req.Sessions {
		startsAt, err := helpers.ParseEventTime(s.StartsAt, loc)
		if err != nil {
			return services.EventDraft{}, fmt.Errorf("%w: session %d start: %v", apperrors.ErrValidationFailed, i+1, err)
		}
		endsAt, err := helpers.ParseEventTime(s.EndsAt, loc)
		if err != nil {
			return services.EventDraft{}, fmt.Errorf("%w: session %d end: %v", apperrors.ErrValidationFailed, i+1, err)
		}
		draft.Sessions = append(draft.Sessions, services.SessionDraft{
			Name:                s.Name,
			StartsAt:            startsAt,
			EndsAt:              endsAt,
			VolunteersOnly:      s.VolunteersOnly,
			RequiredForStudents: s.RequiredForStudents,
		})
	}
	return draft, nil
}

// parseIDParam reads a positive int64 path parameter, responding 400 when it is not one
func parseIDParam(ctx *gin.Context, name, resource string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, fmt.Sprintf("Invalid %s ID", resource))
		errorDetail = errorDetail.WithDetails(fmt.Sprintf("%s ID must be a positive number", resource))
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}
