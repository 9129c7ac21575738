package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"
	"lakra-backend/internal/storage"

	"gorm.io/gorm"
)

type AnnotationService struct {
	db       *gorm.DB
	blobs    storage.BlobStore
	maxBytes int64
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewAnnotationService(db *gorm.DB, blobs storage.BlobStore, maxBytes int64, m *metrics.Metrics) *AnnotationService {
	return &AnnotationService{
		db:       db,
		blobs:    blobs,
		maxBytes: maxBytes,
		metrics:  m,
		log:      slog.Default().With("service", "annotation"),
	}
}

type HighlightInput struct {
	HighlightedText string `json:"highlighted_text" binding:"required"`
	StartIndex      int    `json:"start_index"`
	EndIndex        int    `json:"end_index"`
	TextType        string `json:"text_type"`
	Comment         string `json:"comment"`
	ErrorType       string `json:"error_type"`
}

type AnnotationInput struct {
	SentenceID             uint             `json:"sentence_id" binding:"required"`
	FluencyScore           *int             `json:"fluency_score"`
	AdequacyScore          *int             `json:"adequacy_score"`
	OverallQuality         *int             `json:"overall_quality"`
	ErrorsFound            string           `json:"errors_found"`
	SuggestedCorrection    string           `json:"suggested_correction"`
	Comments               string           `json:"comments"`
	FinalForm              string           `json:"final_form"`
	VoiceRecordingURL      string           `json:"voice_recording_url"`
	VoiceRecordingDuration *int             `json:"voice_recording_duration"`
	TimeSpentSeconds       *int             `json:"time_spent_seconds"`
	Highlights             []HighlightInput `json:"highlights"`
}

func (in *AnnotationInput) empty() bool {
	return in.FluencyScore == nil && in.AdequacyScore == nil && in.OverallQuality == nil &&
		strings.TrimSpace(in.ErrorsFound+in.SuggestedCorrection+in.Comments+in.FinalForm) == "" &&
		in.VoiceRecordingURL == "" && len(in.Highlights) == 0
}

// AnnotationPatch carries only the fields the owner sent. A nil Highlights keeps
// the stored highlights; a non-nil one replaces them.
type AnnotationPatch struct {
	FluencyScore           *int              `json:"fluency_score"`
	AdequacyScore          *int              `json:"adequacy_score"`
	OverallQuality         *int              `json:"overall_quality"`
	ErrorsFound            *string           `json:"errors_found"`
	SuggestedCorrection    *string           `json:"suggested_correction"`
	Comments               *string           `json:"comments"`
	FinalForm              *string           `json:"final_form"`
	VoiceRecordingURL      *string           `json:"voice_recording_url"`
	VoiceRecordingDuration *int              `json:"voice_recording_duration"`
	TimeSpentSeconds       *int              `json:"time_spent_seconds"`
	Highlights             *[]HighlightInput `json:"highlights"`
}

func (s *AnnotationService) Create(ctx context.Context, userID uint, in AnnotationInput) (*models.Annotation, error) {
	db := s.db.WithContext(ctx)

	user, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	sentence, err := activeSentence(db, in.SentenceID)
	if err != nil {
		return nil, err
	}
	if err := requireEligible(user, sentence.Pair()); err != nil {
		s.metrics.AnnotationsTotal.WithLabelValues("ineligible").Inc()
		return nil, err
	}

	if err := validScores(map[string]*int{
		"fluency_score":   in.FluencyScore,
		"adequacy_score":  in.AdequacyScore,
		"overall_quality": in.OverallQuality,
	}); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, NewValidationError("annotation has no content")
	}
	highlights, err := buildHighlights(sentence, in.Highlights)
	if err != nil {
		return nil, err
	}

	a := models.Annotation{
		SentenceID:             sentence.ID,
		AnnotatorID:            userID,
		FluencyScore:           in.FluencyScore,
		AdequacyScore:          in.AdequacyScore,
		OverallQuality:         in.OverallQuality,
		ErrorsFound:            in.ErrorsFound,
		SuggestedCorrection:    in.SuggestedCorrection,
		Comments:               in.Comments,
		FinalForm:              in.FinalForm,
		VoiceRecordingURL:      in.VoiceRecordingURL,
		VoiceRecordingDuration: in.VoiceRecordingDuration,
		TimeSpentSeconds:       in.TimeSpentSeconds,
		Status:                 models.AnnotationSubmitted,
		Highlights:             highlights,
	}
	// The partial unique index on (annotator_id, sentence_id) decides races between
	// concurrent submissions from the same user.
	if err := db.Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			s.metrics.AnnotationsTotal.WithLabelValues("duplicate").Inc()
			return nil, NewDuplicateAnnotationError()
		}
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	s.metrics.AnnotationsTotal.WithLabelValues("created").Inc()
	s.log.Info("annotation created", "annotation_id", a.ID, "user_id", userID, "sentence_id", sentence.ID)

	return s.load(db, a.ID)
}

func (s *AnnotationService) Update(ctx context.Context, userID, id uint, patch AnnotationPatch) (*models.Annotation, error) {
	if err := validScores(map[string]*int{
		"fluency_score":   patch.FluencyScore,
		"adequacy_score":  patch.AdequacyScore,
		"overall_quality": patch.OverallQuality,
	}); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.live(tx, id)
		if err != nil {
			return err
		}
		if a.AnnotatorID != userID {
			return NewForbiddenError("you can only edit your own annotations")
		}
		if !a.Editable() {
			return NewForbiddenError(fmt.Sprintf("annotation is %s and can no longer be edited", a.Status))
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		setInt := func(col string, v *int) {
			if v != nil {
				updates[col] = *v
			}
		}
		setStr := func(col string, v *string) {
			if v != nil {
				updates[col] = *v
			}
		}
		setInt("fluency_score", patch.FluencyScore)
		setInt("adequacy_score", patch.AdequacyScore)
		setInt("overall_quality", patch.OverallQuality)
		setInt("voice_recording_duration", patch.VoiceRecordingDuration)
		setInt("time_spent_seconds", patch.TimeSpentSeconds)
		setStr("errors_found", patch.ErrorsFound)
		setStr("suggested_correction", patch.SuggestedCorrection)
		setStr("comments", patch.Comments)
		setStr("final_form", patch.FinalForm)
		setStr("voice_recording_url", patch.VoiceRecordingURL)

		res := tx.Model(&models.Annotation{}).
			Where("id = ? AND status = ?", id, models.AnnotationSubmitted).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewForbiddenError("annotation can no longer be edited")
		}

		if patch.Highlights != nil {
			highlights, err := buildHighlights(a.Sentence, *patch.Highlights)
			if err != nil {
				return err
			}
			if err := tx.Where("annotation_id = ?", id).Delete(&models.TextHighlight{}).Error; err != nil {
				return err
			}
			for i := range highlights {
				highlights[i].AnnotationID = id
			}
			if len(highlights) > 0 {
				if err := tx.Create(&highlights).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), id)
}

// Delete soft-deletes an annotation. Evaluations that reference it stay and are flagged.
func (s *AnnotationService) Delete(ctx context.Context, actorID, id uint) error {
	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, actorID)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var a models.Annotation
		if err := tx.First(&a, id).Error; err != nil {
			return notFoundOr(err, "annotation")
		}
		if a.Status == models.AnnotationDeleted {
			return NewNotFoundError("annotation")
		}
		if !actor.IsAdmin {
			if a.AnnotatorID != actorID {
				return NewForbiddenError("you can only delete your own annotations")
			}
			if a.Status != models.AnnotationSubmitted {
				return NewForbiddenError(fmt.Sprintf("annotation is %s and can no longer be deleted", a.Status))
			}
		}

		now := time.Now()
		res := tx.Model(&models.Annotation{}).
			Where("id = ? AND status = ?", id, a.Status).
			Updates(map[string]interface{}{
				"status":     models.AnnotationDeleted,
				"deleted_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("annotation %d changed while deleting", id)
		}

		if err := tx.Model(&models.Evaluation{}).
			Where("annotation_id = ?", id).
			Update("annotation_deleted", true).Error; err != nil {
			return fmt.Errorf("flag evaluations: %w", err)
		}

		s.log.Info("annotation deleted", "annotation_id", id, "actor_id", actorID, "admin", actor.IsAdmin)
		return nil
	})
}

// Archive closes an annotation for good. Admin only.
func (s *AnnotationService) Archive(ctx context.Context, id uint) (*models.Annotation, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Annotation{}).
		Where("id = ? AND status IN ?", id, []models.AnnotationStatus{models.AnnotationSubmitted, models.AnnotationEvaluated}).
		Updates(map[string]interface{}{"status": models.AnnotationArchived, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		a, err := s.live(db, id)
		if err != nil {
			return nil, err
		}
		return nil, NewInvalidStateError("annotation is %s and cannot be archived", a.Status)
	}
	return s.load(db, id)
}

// Get returns an annotation to its owner, evaluators and admins.
func (s *AnnotationService) Get(ctx context.Context, actorID, id uint) (*models.Annotation, error) {
	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, actorID)
	if err != nil {
		return nil, err
	}
	a, err := s.load(db, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.AnnotationDeleted && !actor.IsAdmin {
		return nil, NewNotFoundError("annotation")
	}
	if a.AnnotatorID != actorID && !actor.IsAdmin && !actor.IsEvaluator {
		return nil, NewForbiddenError("not authorized to view this annotation")
	}
	return a, nil
}

// ListMine excludes deleted annotations.
func (s *AnnotationService) ListMine(ctx context.Context, userID uint, page Page) ([]models.Annotation, error) {
	var out []models.Annotation
	q := s.db.WithContext(ctx).
		Preload("Sentence").Preload("Highlights").
		Where("annotator_id = ? AND status <> ?", userID, models.AnnotationDeleted).
		Order("created_at DESC, id DESC")
	err := page.apply(q).Find(&out).Error
	return out, err
}

type AnnotationFilter struct {
	Status   models.AnnotationStatus
	Language string
	Page     Page
}

// ListAll is the admin view. Deleted annotations show only when asked for by status.
func (s *AnnotationService) ListAll(ctx context.Context, f AnnotationFilter) ([]models.Annotation, error) {
	q := s.db.WithContext(ctx).
		Preload("Sentence").Preload("Annotator").Preload("Highlights").
		Order("annotations.created_at DESC, annotations.id DESC")
	if f.Status != "" {
		q = q.Where("annotations.status = ?", f.Status)
	} else {
		q = q.Where("annotations.status <> ?", models.AnnotationDeleted)
	}
	if lang := models.NormalizeLanguage(f.Language); lang != "" {
		q = q.Joins("JOIN sentences ON sentences.id = annotations.sentence_id").
			Where("sentences.target_language = ?", lang)
	}
	var out []models.Annotation
	err := f.Page.apply(q).Find(&out).Error
	return out, err
}

func (s *AnnotationService) ListBySentence(ctx context.Context, sentenceID uint) ([]models.Annotation, error) {
	var out []models.Annotation
	err := s.db.WithContext(ctx).
		Preload("Annotator").Preload("Highlights").
		Where("sentence_id = ? AND status <> ?", sentenceID, models.AnnotationDeleted).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// VoiceUpload is an audio file as received from a client.
type VoiceUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type VoiceResult struct {
	AudioURL string `json:"audio_url"`
	Duration int    `json:"duration"`
	Size     int64  `json:"size"`
}

var audioExtensions = map[string]bool{".webm": true, ".wav": true, ".mp3": true, ".ogg": true, ".m4a": true}

// UploadVoice stores audio and returns its reference without touching any annotation.
func (s *AnnotationService) UploadVoice(ctx context.Context, up VoiceUpload) (*VoiceResult, error) {
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "audio/") {
		return nil, NewValidationError("file must be an audio file")
	}
	if up.Size > s.maxBytes {
		return nil, NewValidationError("file size exceeds %d MB limit", s.maxBytes/(1024*1024))
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !audioExtensions[ext] {
		ext = ".webm"
	}

	obj, err := s.blobs.Put(ctx, ext, up.Body, s.maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, NewValidationError("file size exceeds %d MB limit", s.maxBytes/(1024*1024))
		}
		return nil, NewUnavailableError("failed to store voice recording", err)
	}
	return &VoiceResult{AudioURL: obj.URL, Duration: max(1, int(obj.Size/1000)), Size: obj.Size}, nil
}

// AttachVoiceRecording stores audio for an annotation and replaces any previous recording.
// The lifecycle state is unchanged.
func (s *AnnotationService) AttachVoiceRecording(ctx context.Context, userID, id uint, up VoiceUpload) (*VoiceResult, error) {
	db := s.db.WithContext(ctx)
	a, err := s.live(db, id)
	if err != nil {
		return nil, err
	}
	if a.AnnotatorID != userID {
		return nil, NewForbiddenError("you can only attach recordings to your own annotations")
	}

	res, err := s.UploadVoice(ctx, up)
	if err != nil {
		return nil, err
	}

	upd := db.Model(&models.Annotation{}).
		Where("id = ? AND status <> ?", id, models.AnnotationDeleted).
		Updates(map[string]interface{}{
			"voice_recording_url":      res.AudioURL,
			"voice_recording_duration": res.Duration,
			"updated_at":               time.Now(),
		})
	updErr := upd.Error
	if updErr == nil && upd.RowsAffected == 0 {
		updErr = NewNotFoundError("annotation")
	}
	if updErr != nil {
		if err := s.blobs.Delete(ctx, res.AudioURL); err != nil {
			s.log.Warn("failed to remove orphaned recording", "url", res.AudioURL, "error", err)
		}
		return nil, updErr
	}

	if a.VoiceRecordingURL != "" && a.VoiceRecordingURL != res.AudioURL {
		if err := s.blobs.Delete(ctx, a.VoiceRecordingURL); err != nil {
			s.log.Warn("failed to remove previous recording", "url", a.VoiceRecordingURL, "error", err)
		}
	}
	return res, nil
}

// live loads a non-deleted annotation with its sentence.
func (s *AnnotationService) live(db *gorm.DB, id uint) (*models.Annotation, error) {
	var a models.Annotation
	if err := db.Preload("Sentence").First(&a, id).Error; err != nil {
		return nil, notFoundOr(err, "annotation")
	}
	if a.Status == models.AnnotationDeleted {
		return nil, NewNotFoundError("annotation")
	}
	return &a, nil
}

func (s *AnnotationService) load(db *gorm.DB, id uint) (*models.Annotation, error) {
	var a models.Annotation
	if err := db.Preload("Sentence").Preload("Highlights").First(&a, id).Error; err != nil {
		return nil, notFoundOr(err, "annotation")
	}
	return &a, nil
}

func activeSentence(db *gorm.DB, id uint) (*models.Sentence, error) {
	var sentence models.Sentence
	if err := db.First(&sentence, id).Error; err != nil {
		return nil, notFoundOr(err, "sentence")
	}
	if !sentence.IsActive {
		return nil, NewNotFoundError("sentence")
	}
	return &sentence, nil
}

type highlightKey struct {
	start, end int
	textType   string
	comment    string
}

// buildHighlights validates ranges against the sentence text and drops exact repeats.
func buildHighlights(sentence *models.Sentence, in []HighlightInput) ([]models.TextHighlight, error) {
	seen := make(map[highlightKey]bool, len(in))
	out := make([]models.TextHighlight, 0, len(in))
	for i, h := range in {
		textType := strings.ToLower(strings.TrimSpace(h.TextType))
		if textType == "" {
			textType = "machine"
		}
		var text string
		switch textType {
		case "machine":
			if sentence != nil {
				text = sentence.MachineTranslation
			}
		case "source":
			if sentence != nil {
				text = sentence.SourceText
			}
		default:
			return nil, NewValidationError("highlight %d: unknown text_type %q", i, h.TextType)
		}

		if h.StartIndex < 0 || h.EndIndex <= h.StartIndex {
			return nil, NewValidationError("highlight %d: invalid range %d..%d", i, h.StartIndex, h.EndIndex)
		}
		if sentence != nil && h.EndIndex > utf8.RuneCountInString(text) {
			return nil, NewValidationError("highlight %d: range %d..%d exceeds text length", i, h.StartIndex, h.EndIndex)
		}

		errType := models.HighlightErrorType(strings.ToUpper(strings.TrimSpace(h.ErrorType)))
		if errType == "" {
			errType = models.ErrorMinorSemantic
		}
		if !errType.Valid() {
			return nil, NewValidationError("highlight %d: unknown error_type %q", i, h.ErrorType)
		}

		key := highlightKey{h.StartIndex, h.EndIndex, textType, h.Comment}
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, models.TextHighlight{
			HighlightedText: h.HighlightedText,
			StartIndex:      h.StartIndex,
			EndIndex:        h.EndIndex,
			TextType:        textType,
			Comment:         h.Comment,
			ErrorType:       errType,
		})
	}
	return out, nil
}
