package handler

import (
	"net/http"
	"strconv"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/logger"
	"backoffice/internal/model"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error onto the standard error envelope.
func writeError(c *gin.Context, err error) {
	status, res := response.ErrorFrom(err)
	if status >= http.StatusInternalServerError {
		log := logger.WithComponent("http")
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		_ = c.Error(err)
	}
	c.JSON(status, res)
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, apperror.Validation("body", "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, data))
}

// asOfDate reads an optional YYYY-MM-DD field, defaulting to today in UTC.
func asOfDate(value string) (time.Time, error) {
	if value == "" {
		return model.DateOnly(time.Now()), nil
	}
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, apperror.Validation("as_of", "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
