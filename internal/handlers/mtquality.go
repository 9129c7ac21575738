package handlers

import (
	"net/http"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type MTQualityHandler struct {
	mt    *services.MTQualityService
	stats *services.StatsService
}

func NewMTQualityHandler(mt *services.MTQualityService, stats *services.StatsService) *MTQualityHandler {
	return &MTQualityHandler{mt: mt, stats: stats}
}

type AssessRequest struct {
	SentenceID uint `json:"sentence_id" binding:"required" example:"12"`
}

type BatchAssessRequest struct {
	SentenceIDs []uint `json:"sentence_ids" binding:"required"`
}

// Pending godoc
// @Summary      Sentences without a completed MT assessment
// @Tags         mt-quality
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Sentence
// @Router       /api/mt-quality/pending [get]
func (h *MTQualityHandler) Pending(c *gin.Context) {
	list, err := h.mt.ListPending(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Sentence{}
	}
	c.JSON(http.StatusOK, list)
}

// Assess godoc
// @Summary      Assess one sentence
// @Description  Re-assessing replaces the stored assessment.
// @Tags         mt-quality
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body AssessRequest true "Sentence"
// @Success      200 {object} MTQualityAssessment
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /api/mt-quality/assess [post]
func (h *MTQualityHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.mt.Assess(c.Request.Context(), currentUserID(c), req.SentenceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// BatchAssess godoc
// @Summary      Assess several sentences
// @Description  Each sentence is assessed independently. Any failed item makes the answer 207 with both lists.
// @Tags         mt-quality
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body BatchAssessRequest true "Sentence IDs"
// @Success      200 {object} services.BatchResult
// @Success      207 {object} services.BatchResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/mt-quality/batch-assess [post]
func (h *MTQualityHandler) BatchAssess(c *gin.Context) {
	var req BatchAssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.mt.BatchAssess(c.Request.Context(), currentUserID(c), req.SentenceIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

// Update godoc
// @Summary      Record a human review
// @Description  The latest review replaces any earlier one.
// @Tags         mt-quality
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Param        request body services.MTReview true "Review"
// @Success      200 {object} MTQualityAssessment
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/mt-quality/{id} [put]
func (h *MTQualityHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.MTReview
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.mt.UpdateAssessment(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Mine godoc
// @Summary      Assessments the caller requested or reviewed
// @Tags         mt-quality
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} MTQualityAssessment
// @Router       /api/mt-quality/my-assessments [get]
func (h *MTQualityHandler) Mine(c *gin.Context) {
	list, err := h.mt.ListMine(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Stats godoc
// @Summary      MT evaluator statistics
// @Tags         mt-quality
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.MTEvaluatorStats
// @Router       /api/mt-quality/stats [get]
func (h *MTQualityHandler) Stats(c *gin.Context) {
	st, err := h.stats.MTEvaluatorStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// BySentence godoc
// @Summary      Assessment of a sentence
// @Description  found is false when the sentence has not been assessed yet.
// @Tags         mt-quality
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sentence ID"
// @Success      200 {object} services.AssessmentLookup
// @Router       /api/mt-quality/sentence/{id} [get]
func (h *MTQualityHandler) BySentence(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lookup, err := h.mt.GetBySentence(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookup)
}
