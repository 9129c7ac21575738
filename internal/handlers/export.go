package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

var exportColumns = []string{
	"annotation_id", "sentence_id", "target_language", "domain", "source_text", "machine_translation",
	"final_form", "suggested_correction", "fluency_score", "adequacy_score", "overall_quality",
	"error_types", "annotator", "annotation_status", "evaluation_count", "avg_evaluation_score", "created_at",
}

// ExportAnnotations godoc
// @Summary      Export annotated translations
// @Description  Streams every matching annotation as CSV or JSON. Deleted annotations are left out unless asked for by status.
// @Tags         admin
// @Produce      json
// @Produce      text/csv
// @Security     BearerAuth
// @Param        format query string false "json or csv" default(json)
// @Param        status query string false "Annotation status"
// @Param        language query string false "Target language"
// @Success      200 {array} services.ExportRow
// @Router       /api/admin/annotations/export [get]
func (h *AdminHandler) ExportAnnotations(c *gin.Context) {
	rows, err := h.annotations.Export(c.Request.Context(), services.AnnotationFilter{
		Status:   models.AnnotationStatus(c.Query("status")),
		Language: c.Query("language"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	filename := "annotations_" + time.Now().UTC().Format("20060102")
	if lang := models.NormalizeLanguage(c.Query("language")); lang != "" {
		filename += "_" + lang
	}

	if c.DefaultQuery("format", "json") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

		w := csv.NewWriter(c.Writer)
		w.Write(exportColumns)
		for i := range rows {
			w.Write(csvRecord(&rows[i]))
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = c.Error(err)
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", filename))
	c.JSON(http.StatusOK, rows)
}

func csvRecord(r *services.ExportRow) []string {
	return []string{
		strconv.FormatUint(uint64(r.AnnotationID), 10),
		strconv.FormatUint(uint64(r.SentenceID), 10),
		r.TargetLanguage,
		r.Domain,
		r.SourceText,
		r.MachineTranslation,
		r.FinalForm,
		r.SuggestedCorrection,
		optionalInt(r.FluencyScore),
		optionalInt(r.AdequacyScore),
		optionalInt(r.OverallQuality),
		r.ErrorTypes(),
		r.Annotator,
		string(r.Status),
		strconv.FormatInt(r.EvaluationCount, 10),
		optionalFloat(r.AvgEvaluationScore),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
