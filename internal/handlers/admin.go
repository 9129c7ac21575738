package handlers

import (
	"net/http"
	"strconv"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	users       *services.UserService
	sentences   *services.SentenceService
	annotations *services.AnnotationService
	mt          *services.MTQualityService
	proficiency *services.ProficiencyService
	stats       *services.StatsService
}

func NewAdminHandler(
	users *services.UserService,
	sentences *services.SentenceService,
	annotations *services.AnnotationService,
	mt *services.MTQualityService,
	proficiency *services.ProficiencyService,
	stats *services.StatsService,
) *AdminHandler {
	return &AdminHandler{
		users:       users,
		sentences:   sentences,
		annotations: annotations,
		mt:          mt,
		proficiency: proficiency,
		stats:       stats,
	}
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// Stats godoc
// @Summary      Platform statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.AdminStats
// @Router       /api/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.stats.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListSentences godoc
// @Summary      List sentences
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        target_language query string false "Target language"
// @Param        include_inactive query bool false "Include deactivated sentences"
// @Success      200 {array} Sentence
// @Router       /api/admin/sentences [get]
func (h *AdminHandler) ListSentences(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	list, err := h.sentences.List(c.Request.Context(), services.SentenceFilter{
		Language:        c.Query("target_language"),
		IncludeInactive: includeInactive,
		Page:            pageFromQuery(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SentenceCounts godoc
// @Summary      Active sentences per language
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]int64
// @Router       /api/admin/sentences/counts [get]
func (h *AdminHandler) SentenceCounts(c *gin.Context) {
	counts, err := h.stats.SentenceCountsByLanguage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// BulkSentences godoc
// @Summary      Add sentences in bulk
// @Description  Rows are stored independently. Failed rows are reported by position, starting at 1.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body []services.SentenceInput true "Sentences"
// @Success      201 {object} services.ImportResult
// @Router       /api/admin/sentences/bulk [post]
func (h *AdminHandler) BulkSentences(c *gin.Context) {
	var req []services.SentenceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.sentences.BulkCreate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusCreated, res)
}

// ImportCSV godoc
// @Summary      Import sentences from CSV
// @Description  Header row required. Failed rows are reported by file line number.
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "CSV file"
// @Success      200 {object} services.ImportResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/admin/sentences/import-csv [post]
func (h *AdminHandler) ImportCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required", Kind: string(services.KindValidation)})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read uploaded file", Kind: string(services.KindValidation)})
		return
	}
	defer f.Close()

	res, err := h.sentences.ImportCSV(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, res)
}

// SentenceAnnotations godoc
// @Summary      Live annotations of a sentence
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sentence ID"
// @Success      200 {array} Annotation
// @Router       /api/admin/sentences/{id}/annotations [get]
func (h *AdminHandler) SentenceAnnotations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.annotations.ListBySentence(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DeactivateSentence godoc
// @Summary      Remove a sentence from distribution
// @Description  Sentences are deactivated, never deleted, so existing annotations keep their reference.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sentence ID"
// @Success      200 {object} Sentence
// @Router       /api/admin/sentences/{id} [delete]
func (h *AdminHandler) DeactivateSentence(c *gin.Context) {
	h.setSentenceActive(c, false)
}

// ActivateSentence godoc
// @Summary      Return a sentence to distribution
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sentence ID"
// @Success      200 {object} Sentence
// @Router       /api/admin/sentences/{id}/activate [put]
func (h *AdminHandler) ActivateSentence(c *gin.Context) {
	h.setSentenceActive(c, true)
}

func (h *AdminHandler) setSentenceActive(c *gin.Context, active bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s, err := h.sentences.SetActive(c.Request.Context(), id, active)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, s)
}

// ListAnnotations godoc
// @Summary      List annotations
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Annotation status"
// @Param        language query string false "Target language"
// @Success      200 {array} Annotation
// @Router       /api/admin/annotations [get]
func (h *AdminHandler) ListAnnotations(c *gin.Context) {
	list, err := h.annotations.ListAll(c.Request.Context(), services.AnnotationFilter{
		Status:   models.AnnotationStatus(c.Query("status")),
		Language: c.Query("language"),
		Page:     pageFromQuery(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ArchiveAnnotation godoc
// @Summary      Archive an annotation
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Success      200 {object} Annotation
// @Failure      409 {object} ErrorResponse
// @Router       /api/admin/annotations/{id}/archive [put]
func (h *AdminHandler) ArchiveAnnotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.annotations.Archive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAnnotation godoc
// @Summary      Delete any annotation
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Success      200 {object} MessageResponse
// @Router       /api/admin/annotations/{id} [delete]
func (h *AdminHandler) DeleteAnnotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.annotations.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, MessageResponse{Message: "annotation deleted"})
}

// ListUsers godoc
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        search query string false "Email, username or name fragment"
// @Param        role query string false "admin, evaluator or inactive"
// @Success      200 {array} User
// @Router       /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context(), services.UserFilter{
		Search: c.Query("search"),
		Role:   c.Query("role"),
		Page:   pageFromQuery(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateUser godoc
// @Summary      Create a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.AdminUserInput true "User"
// @Success      201 {object} User
// @Failure      409 {object} ErrorResponse
// @Router       /api/admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req services.AdminUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusCreated, u)
}

// UpdateUser godoc
// @Summary      Update a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Param        request body services.AdminUserPatch true "Changed fields"
// @Success      200 {object} User
// @Failure      403 {object} ErrorResponse
// @Router       /api/admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.AdminUserPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, u)
}

// DeleteUser godoc
// @Summary      Delete a user without history
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, MessageResponse{Message: "user deleted"})
}

// ToggleEvaluator godoc
// @Summary      Grant or revoke the evaluator role
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} User
// @Router       /api/admin/users/{id}/toggle-evaluator [put]
func (h *AdminHandler) ToggleEvaluator(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.ToggleEvaluator(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, u)
}

// DeactivateUser godoc
// @Summary      Deactivate a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} User
// @Failure      403 {object} ErrorResponse
// @Router       /api/admin/users/{id}/deactivate [put]
func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Deactivate(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, u)
}

// ResetPassword godoc
// @Summary      Set a new password for a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Param        request body ResetPasswordRequest true "New password"
// @Success      200 {object} MessageResponse
// @Router       /api/admin/users/{id}/reset-password [post]
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), id, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "password reset"})
}

// ListAssessments godoc
// @Summary      List MT quality assessments
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "pending, assessed or human_reviewed"
// @Success      200 {array} MTQualityAssessment
// @Router       /api/admin/mt-quality [get]
func (h *AdminHandler) ListAssessments(c *gin.Context) {
	list, err := h.mt.ListAll(c.Request.Context(), models.AssessmentStatus(c.Query("status")), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListQuestions godoc
// @Summary      List proficiency questions with answers
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        language query string false "Language"
// @Success      200 {array} models.LanguageProficiencyQuestion
// @Router       /api/admin/language-proficiency-questions [get]
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	list, err := h.proficiency.ListAllQuestions(c.Request.Context(), c.Query("language"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateQuestion godoc
// @Summary      Add a proficiency question
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.QuestionInput true "Question"
// @Success      201 {object} models.LanguageProficiencyQuestion
// @Failure      400 {object} ErrorResponse
// @Router       /api/admin/language-proficiency-questions [post]
func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	var req services.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.proficiency.CreateQuestion(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// UpdateQuestion godoc
// @Summary      Update a proficiency question
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Question ID"
// @Param        request body services.QuestionPatch true "Changed fields"
// @Success      200 {object} models.LanguageProficiencyQuestion
// @Router       /api/admin/language-proficiency-questions/{id} [put]
func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.QuestionPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.proficiency.UpdateQuestion(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// DeleteQuestion godoc
// @Summary      Delete a proficiency question
// @Description  Questions that were already answered are deactivated instead of removed.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Question ID"
// @Success      200 {object} MessageResponse
// @Router       /api/admin/language-proficiency-questions/{id} [delete]
func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	removed, err := h.proficiency.DeleteQuestion(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "question deleted"
	if !removed {
		msg = "question deactivated"
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}
