package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yigit/eventsignup/internal/app/models/dto"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

// HandleAPIError maps service errors onto HTTP statuses and error codes
func HandleAPIError(c *gin.Context, err error) {
	var detail *dto.ErrorDetail
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperrors.ErrResourceNotFound):
		status = http.StatusNotFound
		detail = dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, err.Error())
	case errors.Is(err, apperrors.ErrUnknownSession):
		status = http.StatusBadRequest
		detail = dto.NewErrorDetail(dto.ErrorCodeUnknownSession, err.Error()).WithField("sessionIds")
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		status = http.StatusBadRequest
		detail = dto.NewErrorDetail(dto.ErrorCodeValidationFailed, err.Error())
	case errors.Is(err, apperrors.ErrInvalidTransition):
		status = http.StatusConflict
		detail = dto.NewErrorDetail(dto.ErrorCodeInvalidTransition, err.Error())
	case errors.Is(err, apperrors.ErrAlreadyRegistered):
		status = http.StatusConflict
		detail = dto.NewErrorDetail(dto.ErrorCodeAlreadyRegistered, err.Error())
	case errors.Is(err, apperrors.ErrStudentRsvpClosed):
		status = http.StatusForbidden
		detail = dto.NewErrorDetail(dto.ErrorCodeStudentRsvpClosed, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
		detail = dto.NewErrorDetail(dto.ErrorCodeConflict, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Str("requestId", RequestID(c)).Msg("Unhandled API error")
		detail = dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error").
			WithSeverity(dto.ErrorSeverityCritical)
	}

	c.JSON(status, dto.NewErrorResponse(detail))
}
