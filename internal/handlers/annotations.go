package handlers

import (
	"net/http"
	"strconv"

	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AnnotationHandler struct {
	annotations *services.AnnotationService
	evaluations *services.EvaluationService
}

func NewAnnotationHandler(annotations *services.AnnotationService, evaluations *services.EvaluationService) *AnnotationHandler {
	return &AnnotationHandler{annotations: annotations, evaluations: evaluations}
}

// Create godoc
// @Summary      Submit an annotation
// @Description  One live annotation per user and sentence. Requires proficiency in the sentence's language.
// @Tags         annotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.AnnotationInput true "Annotation"
// @Success      201 {object} Annotation
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/annotations [post]
func (h *AnnotationHandler) Create(c *gin.Context) {
	var req services.AnnotationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	annotation, err := h.annotations.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, annotation)
}

// ListMine godoc
// @Summary      List own annotations
// @Tags         annotations
// @Produce      json
// @Security     BearerAuth
// @Param        skip query int false "Offset"
// @Param        limit query int false "Page size"
// @Success      200 {array} Annotation
// @Router       /api/annotations [get]
func (h *AnnotationHandler) ListMine(c *gin.Context) {
	list, err := h.annotations.ListMine(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary      Get an annotation
// @Tags         annotations
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Success      200 {object} Annotation
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/annotations/{id} [get]
func (h *AnnotationHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	annotation, err := h.annotations.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// Update godoc
// @Summary      Edit own annotation
// @Description  Only submitted annotations can be edited. A highlights array replaces the stored highlights.
// @Tags         annotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Param        request body services.AnnotationPatch true "Changed fields"
// @Success      200 {object} Annotation
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/annotations/{id} [put]
func (h *AnnotationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.AnnotationPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	annotation, err := h.annotations.Update(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// Delete godoc
// @Summary      Delete an annotation
// @Description  Logical delete. Evaluations of the annotation are kept and flagged.
// @Tags         annotations
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/annotations/{id} [delete]
func (h *AnnotationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.annotations.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "annotation deleted"})
}

// UploadVoice godoc
// @Summary      Upload a voice recording
// @Description  Stores the audio and returns its URL. With annotation_id the recording is attached to that annotation.
// @Tags         annotations
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        audio_file formData file true "Audio file"
// @Param        annotation_id formData int false "Annotation to attach to"
// @Success      200 {object} services.VoiceResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/annotations/upload-voice [post]
func (h *AnnotationHandler) UploadVoice(c *gin.Context) {
	fh, err := c.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "audio_file is required", Kind: string(services.KindValidation)})
		return
	}
	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read uploaded file", Kind: string(services.KindValidation)})
		return
	}
	defer file.Close()

	up := services.VoiceUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}

	var res *services.VoiceResult
	if raw := c.PostForm("annotation_id"); raw != "" {
		id, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil || id == 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid annotation_id", Kind: string(services.KindValidation)})
			return
		}
		res, err = h.annotations.AttachVoiceRecording(c.Request.Context(), currentUserID(c), uint(id), up)
	} else {
		res, err = h.annotations.UploadVoice(c.Request.Context(), up)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Evaluations godoc
// @Summary      Evaluations of an annotation
// @Tags         annotations
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Annotation ID"
// @Success      200 {array} Evaluation
// @Failure      403 {object} ErrorResponse
// @Router       /api/annotations/{id}/evaluations [get]
func (h *AnnotationHandler) Evaluations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.evaluations.ListForAnnotation(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
