package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{services.NewValidationError("bad score"), http.StatusBadRequest, "validation"},
		{services.NewUnauthorizedError("no"), http.StatusUnauthorized, "unauthorized"},
		{services.NewIneligibleError("not qualified for %s", "tagalog"), http.StatusForbidden, "ineligible"},
		{services.NewForbiddenError("not yours"), http.StatusForbidden, "forbidden"},
		{services.NewNotFoundError("annotation"), http.StatusNotFound, "not_found"},
		{services.NewDuplicateAnnotationError(), http.StatusConflict, "duplicate_annotation"},
		{services.NewDuplicateEvaluationError(), http.StatusConflict, "duplicate_evaluation"},
		{services.NewInvalidStateError("archived"), http.StatusConflict, "invalid_state"},
		{services.NewUnavailableError("scorer down", errors.New("timeout")), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("wrapped: %w", services.NewNotFoundError("sentence")), http.StatusNotFound, "not_found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		if tc.kind != "" {
			assert.Contains(t, w.Body.String(), `"kind":"`+tc.kind+`"`)
		} else {
			assert.NotContains(t, w.Body.String(), "disk on fire", "internal detail must not leak")
		}
	}
}

func TestParseIDRejectsZero(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, raw := range []string{"0", "-1", "abc"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		_, ok := parseID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := parseID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}
