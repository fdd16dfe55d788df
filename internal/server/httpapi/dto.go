package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/errs"
)

// errorResponse is the wire shape of every non-validation failure.
type errorResponse struct {
	Detail string `json:"detail"`
}

// validationErrorResponse adds per-field messages to the 422 payload.
type validationErrorResponse struct {
	Detail string            `json:"detail"`
	Errors []errs.FieldError `json:"errors"`
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type dbHealthResponse struct {
	Status   string  `json:"status"`
	Database string  `json:"database"`
	Error    *string `json:"error"`
}

func writeError(c *gin.Context, status int, detail string) {
	c.JSON(status, errorResponse{Detail: detail})
}

func writeValidation(c *gin.Context, ve *errs.ValidationError) {
	c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{
		Detail: "Validation error",
		Errors: ve.Fields,
	})
}

// writeBindError reports an unreadable or unexpected request body as a
// validation failure on the body itself.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{
		Detail: "Validation error",
		Errors: []errs.FieldError{{Field: "body", Message: err.Error()}},
	})
}
