package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps an application error onto the HTTP response. Internal
// errors are masked.
func RespondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	case apperrors.IsEntitlement(err):
		c.JSON(http.StatusPaymentRequired, NewErrorResponse(err.Error()))
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
	}
}
