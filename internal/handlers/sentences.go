package handlers

import (
	"net/http"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type SentenceHandler struct {
	distributor *services.DistributorService
	sentences   *services.SentenceService
}

func NewSentenceHandler(distributor *services.DistributorService, sentences *services.SentenceService) *SentenceHandler {
	return &SentenceHandler{distributor: distributor, sentences: sentences}
}

// Next godoc
// @Summary      Next sentence to annotate
// @Description  Returns the least-annotated eligible sentence the caller has not annotated, or null when none is left.
// @Tags         sentences
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Sentence
// @Router       /api/sentences/next [get]
func (h *SentenceHandler) Next(c *gin.Context) {
	sentence, err := h.distributor.NextSentenceFor(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if sentence == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, sentence)
}

// Unannotated godoc
// @Summary      Sentences still open for the caller
// @Tags         sentences
// @Produce      json
// @Security     BearerAuth
// @Param        skip query int false "Offset"
// @Param        limit query int false "Page size"
// @Success      200 {array} Sentence
// @Router       /api/sentences/unannotated [get]
func (h *SentenceHandler) Unannotated(c *gin.Context) {
	page := pageFromQuery(c)
	list, err := h.distributor.ListUnannotated(c.Request.Context(), currentUserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Sentence{}
	}
	c.JSON(http.StatusOK, list)
}

// List godoc
// @Summary      List active sentences
// @Tags         sentences
// @Produce      json
// @Security     BearerAuth
// @Param        target_language query string false "Target language"
// @Param        skip query int false "Offset"
// @Param        limit query int false "Page size"
// @Success      200 {array} Sentence
// @Router       /api/sentences [get]
func (h *SentenceHandler) List(c *gin.Context) {
	list, err := h.sentences.List(c.Request.Context(), services.SentenceFilter{
		Language: c.Query("target_language"),
		Page:     pageFromQuery(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary      Get a sentence
// @Tags         sentences
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sentence ID"
// @Success      200 {object} Sentence
// @Failure      404 {object} ErrorResponse
// @Router       /api/sentences/{id} [get]
func (h *SentenceHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sentence, err := h.sentences.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sentence)
}

// Create godoc
// @Summary      Add a sentence
// @Tags         sentences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.SentenceInput true "Sentence"
// @Success      201 {object} Sentence
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Router       /api/sentences [post]
func (h *SentenceHandler) Create(c *gin.Context) {
	var req services.SentenceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sentence, err := h.sentences.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sentence)
}
