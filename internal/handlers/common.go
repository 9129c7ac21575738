package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
	Kind  string `json:"kind,omitempty" example:"validation"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type User = models.User
type Sentence = models.Sentence
type Annotation = models.Annotation
type Evaluation = models.Evaluation
type MTQualityAssessment = models.MTQualityAssessment

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:          http.StatusBadRequest,
	services.KindUnauthorized:        http.StatusUnauthorized,
	services.KindIneligible:          http.StatusForbidden,
	services.KindForbidden:           http.StatusForbidden,
	services.KindNotFound:            http.StatusNotFound,
	services.KindDuplicateAnnotation: http.StatusConflict,
	services.KindDuplicateEvaluation: http.StatusConflict,
	services.KindInvalidState:        http.StatusConflict,
	services.KindConflict:            http.StatusConflict,
	services.KindUnavailable:         http.StatusServiceUnavailable,
}

// respondError maps typed service failures to their status. Anything untyped is a 500
// and its detail stays in the log.
func respondError(c *gin.Context, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status, known := statusByKind[se.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{Error: se.Message, Kind: string(se.Kind)})
		return
	}
	slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: string(services.KindValidation)})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param, Kind: string(services.KindValidation)})
		return 0, false
	}
	return uint(id), true
}

// pageFromQuery reads skip and limit. Bad values fall back to the defaults.
func pageFromQuery(c *gin.Context) services.Page {
	skip, _ := strconv.Atoi(c.Query("skip"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.Page{Skip: skip, Limit: limit}
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}
