package handlers

import (
	"net/http"

	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type EvaluationHandler struct {
	evaluations *services.EvaluationService
	stats       *services.StatsService
}

func NewEvaluationHandler(evaluations *services.EvaluationService, stats *services.StatsService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations, stats: stats}
}

// Create godoc
// @Summary      Evaluate an annotation
// @Description  One evaluation per evaluator and annotation. Evaluators cannot review their own work.
// @Tags         evaluations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.EvaluationInput true "Evaluation"
// @Success      201 {object} Evaluation
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	var req services.EvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ev, err := h.evaluations.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// Update godoc
// @Summary      Revise own evaluation
// @Tags         evaluations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Evaluation ID"
// @Param        request body services.EvaluationPatch true "Changed fields"
// @Success      200 {object} Evaluation
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.EvaluationPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ev, err := h.evaluations.Update(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// ListMine godoc
// @Summary      List own evaluations
// @Tags         evaluations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Evaluation
// @Router       /api/evaluations [get]
func (h *EvaluationHandler) ListMine(c *gin.Context) {
	list, err := h.evaluations.ListMine(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Pending godoc
// @Summary      Annotations awaiting the caller's review
// @Tags         evaluations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Annotation
// @Router       /api/evaluations/pending [get]
func (h *EvaluationHandler) Pending(c *gin.Context) {
	list, err := h.evaluations.ListPending(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Stats godoc
// @Summary      Evaluator statistics
// @Tags         evaluations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.EvaluatorStats
// @Router       /api/evaluator/stats [get]
func (h *EvaluationHandler) Stats(c *gin.Context) {
	st, err := h.stats.EvaluatorStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UserStats godoc
// @Summary      Annotator statistics for the caller
// @Tags         evaluations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.UserStats
// @Router       /api/me/stats [get]
func (h *EvaluationHandler) UserStats(c *gin.Context) {
	st, err := h.stats.UserStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
