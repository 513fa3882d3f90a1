package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"NFTSentinel/internal/model"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a service error onto an HTTP status.
func Fail(c *gin.Context, err error) {
	var (
		ve *model.ValidationError
		se *model.StorageError
	)
	switch {
	case errors.As(err, &ve):
		Error(c, http.StatusBadRequest, ve.Error(), map[string]any{"field": ve.Field})
	case errors.Is(err, model.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &se):
		Error(c, http.StatusServiceUnavailable, se.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}
