package handlers

import (
	"net/http"
	"strings"

	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct {
	proficiency *services.ProficiencyService
}

func NewOnboardingHandler(proficiency *services.ProficiencyService) *OnboardingHandler {
	return &OnboardingHandler{proficiency: proficiency}
}

type CreateTestRequest struct {
	Languages []string `json:"languages" binding:"required,min=1"`
}

type SubmitTestRequest struct {
	Answers []services.AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

type SubmitSessionRequest struct {
	TestSessionID string                 `json:"test_session_id" binding:"required"`
	Languages     []string               `json:"languages" binding:"required,min=1"`
	Answers       []services.AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

// CreateTest godoc
// @Summary      Start an onboarding test
// @Description  Returns the open test for the same languages when there is one.
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateTestRequest true "Languages"
// @Success      201 {object} services.TestView
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/onboarding-tests [post]
func (h *OnboardingHandler) CreateTest(c *gin.Context) {
	var req CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	test, err := h.proficiency.CreateTest(c.Request.Context(), currentUserID(c), req.Languages)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, test)
}

// MyTests godoc
// @Summary      List own onboarding tests
// @Tags         onboarding
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.OnboardingTest
// @Router       /api/onboarding-tests/my-tests [get]
func (h *OnboardingHandler) MyTests(c *gin.Context) {
	tests, err := h.proficiency.ListTests(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tests)
}

// GetTest godoc
// @Summary      Get an onboarding test
// @Tags         onboarding
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Test ID"
// @Success      200 {object} services.TestView
// @Failure      404 {object} ErrorResponse
// @Router       /api/onboarding-tests/{id} [get]
func (h *OnboardingHandler) GetTest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	test, err := h.proficiency.GetTest(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// SubmitTest godoc
// @Summary      Submit an onboarding test
// @Description  A test is scored once. Resubmission answers 409.
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Test ID"
// @Param        request body SubmitTestRequest true "Answers"
// @Success      200 {object} services.TestResult
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/onboarding-tests/{id}/submit [post]
func (h *OnboardingHandler) SubmitTest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req SubmitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.proficiency.RecordTestResult(c.Request.Context(), currentUserID(c), id, req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Questions godoc
// @Summary      Proficiency questions without answers
// @Tags         onboarding
// @Produce      json
// @Security     BearerAuth
// @Param        languages query string false "Comma separated languages"
// @Success      200 {array} models.PublicQuestion
// @Router       /api/language-proficiency-questions [get]
func (h *OnboardingHandler) Questions(c *gin.Context) {
	var langs []string
	for _, raw := range c.QueryArray("languages") {
		langs = append(langs, strings.Split(raw, ",")...)
	}
	questions, err := h.proficiency.ListQuestions(c.Request.Context(), langs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// SubmitSession godoc
// @Summary      Submit answers for a client-side test session
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SubmitSessionRequest true "Session answers"
// @Success      200 {object} services.TestResult
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/language-proficiency-questions/submit [post]
func (h *OnboardingHandler) SubmitSession(c *gin.Context) {
	var req SubmitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.proficiency.SubmitSession(c.Request.Context(), currentUserID(c), req.TestSessionID, req.Languages, req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
