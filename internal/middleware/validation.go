package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yigit/eventsignup/internal/app/models/dto"
)

// FieldError is one failed binding rule
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HandleBindingError responds 400 to a request body that failed to bind
func HandleBindingError(c *gin.Context, message string, err error) {
	detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, message)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, FieldError{Field: e.Field(), Message: formatValidationError(e)})
		}
		if len(fields) == 1 {
			detail = detail.WithField(fields[0].Field)
		}
		detail = detail.WithDetails(fields)
	} else {
		detail = detail.WithDetails(err.Error())
	}

	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(detail))
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must have at least " + e.Param() + " entries"
	case "gte":
		return e.Field() + " must be at least " + e.Param()
	case "email":
		return e.Field() + " must be a valid email address"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
