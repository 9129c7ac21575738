package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProficiencyService is the gate between registration and annotation work.
type ProficiencyService struct {
	db            *gorm.DB
	passThreshold float64
	questionCount int
	metrics       *metrics.Metrics
	log           *slog.Logger
}

func NewProficiencyService(db *gorm.DB, passThreshold float64, questionCount int, m *metrics.Metrics) *ProficiencyService {
	if questionCount <= 0 {
		questionCount = 10
	}
	return &ProficiencyService{
		db:            db,
		passThreshold: passThreshold,
		questionCount: questionCount,
		metrics:       m,
		log:           slog.Default().With("service", "proficiency"),
	}
}

func (s *ProficiencyService) PassThreshold() float64 { return s.passThreshold }

// eligibleLanguages returns the target languages a user may currently work in.
func eligibleLanguages(user *models.User) []string {
	if !user.IsActive {
		return nil
	}
	var out []string
	for _, l := range user.Languages {
		if user.SkipOnboarding || l.ProficiencyPassed {
			out = append(out, models.NormalizeLanguage(l.Language))
		}
	}
	return out
}

func isEligible(user *models.User, pair models.LanguagePair) bool {
	if pair.Source != "" && pair.Source != models.SourceLanguageEnglish {
		return false
	}
	return slices.Contains(eligibleLanguages(user), pair.Target)
}

func (s *ProficiencyService) IsEligible(ctx context.Context, userID uint, pair models.LanguagePair) (bool, error) {
	user, err := loadUser(s.db.WithContext(ctx), userID)
	if err != nil {
		return false, err
	}
	return isEligible(user, models.NewLanguagePair(pair.Source, pair.Target)), nil
}

func requireEligible(user *models.User, pair models.LanguagePair) error {
	if isEligible(user, pair) {
		return nil
	}
	if !user.IsActive {
		return NewIneligibleError("account is deactivated")
	}
	switch user.OnboardingStatus {
	case models.OnboardingPending:
		return NewIneligibleError("you need to complete the onboarding test before you can access annotation features")
	case models.OnboardingInProgress:
		return NewIneligibleError("please complete your onboarding test to access annotation features")
	case models.OnboardingFailed:
		return NewIneligibleError("you need to pass the onboarding test before you can access annotation features")
	}
	return NewIneligibleError("you are not qualified for %s → %s", pair.Source, pair.Target)
}

// TestView is a test together with the questions a taker may see.
type TestView struct {
	models.OnboardingTest
	Questions []models.PublicQuestion `json:"questions"`
}

// CreateTest returns the caller's in-progress test for the same languages or starts a new one.
func (s *ProficiencyService) CreateTest(ctx context.Context, userID uint, languages []string) (*TestView, error) {
	langs, err := validateLanguages(languages)
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		return nil, NewValidationError("at least one language is required")
	}
	db := s.db.WithContext(ctx)

	var open []models.OnboardingTest
	if err := db.Where("user_id = ? AND status = ?", userID, models.TestInProgress).
		Order("id DESC").Find(&open).Error; err != nil {
		return nil, err
	}
	for i := range open {
		if slices.Equal(models.NormalizeLanguages(open[i].Languages), langs) {
			return s.view(db, &open[i])
		}
	}

	var questionIDs []uint
	for _, lang := range langs {
		var ids []uint
		if err := db.Model(&models.LanguageProficiencyQuestion{}).
			Where("language = ? AND is_active = ?", lang, true).
			Order("id ASC").Limit(s.questionCount).
			Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, NewNotFoundError(fmt.Sprintf("proficiency questions for %s", lang))
		}
		questionIDs = append(questionIDs, ids...)
	}

	test := models.OnboardingTest{
		UserID:         userID,
		SessionID:      uuid.NewString(),
		Languages:      langs,
		QuestionIDs:    questionIDs,
		Status:         models.TestInProgress,
		TotalQuestions: len(questionIDs),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&test).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND onboarding_status <> ?", userID, models.OnboardingCompleted).
			Update("onboarding_status", models.OnboardingInProgress).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create onboarding test: %w", err)
	}
	return s.view(db, &test)
}

func (s *ProficiencyService) GetTest(ctx context.Context, userID, testID uint) (*TestView, error) {
	db := s.db.WithContext(ctx)
	var test models.OnboardingTest
	if err := db.Where("id = ? AND user_id = ?", testID, userID).First(&test).Error; err != nil {
		return nil, notFoundOr(err, "test")
	}
	return s.view(db, &test)
}

func (s *ProficiencyService) ListTests(ctx context.Context, userID uint) ([]models.OnboardingTest, error) {
	var tests []models.OnboardingTest
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC, id DESC").Find(&tests).Error
	return tests, err
}

func (s *ProficiencyService) view(db *gorm.DB, test *models.OnboardingTest) (*TestView, error) {
	questions, err := questionsByID(db, test.QuestionIDs)
	if err != nil {
		return nil, err
	}
	v := &TestView{OnboardingTest: *test, Questions: make([]models.PublicQuestion, 0, len(test.QuestionIDs))}
	for _, id := range test.QuestionIDs {
		if q, ok := questions[id]; ok {
			v.Questions = append(v.Questions, q.Public())
		}
	}
	return v, nil
}

func questionsByID(db *gorm.DB, ids []uint) (map[uint]*models.LanguageProficiencyQuestion, error) {
	out := make(map[uint]*models.LanguageProficiencyQuestion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var qs []models.LanguageProficiencyQuestion
	if err := db.Where("id IN ?", ids).Find(&qs).Error; err != nil {
		return nil, err
	}
	for i := range qs {
		out[qs[i].ID] = &qs[i]
	}
	return out, nil
}

type AnswerInput struct {
	QuestionID     uint `json:"question_id" binding:"required"`
	SelectedAnswer int  `json:"selected_answer"`
}

type TestResult struct {
	TestID              uint                             `json:"test_id"`
	SessionID           string                           `json:"session_id"`
	TotalQuestions      int                              `json:"total_questions"`
	CorrectAnswers      int                              `json:"correct_answers"`
	Score               float64                          `json:"score"`
	Passed              bool                             `json:"passed"`
	QuestionsByLanguage map[string]models.LanguageResult `json:"questions_by_language"`
	UpdatedUser         *models.User                     `json:"updated_user,omitempty"`
}

// RecordTestResult scores and closes a test. A test can be submitted exactly once.
func (s *ProficiencyService) RecordTestResult(ctx context.Context, userID, testID uint, answers []AnswerInput) (*TestResult, error) {
	var result *TestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var test models.OnboardingTest
		if err := tx.Where("id = ? AND user_id = ?", testID, userID).First(&test).Error; err != nil {
			return notFoundOr(err, "test")
		}
		var err error
		result, err = s.submit(tx, &test, answers)
		return err
	})
	if err != nil {
		s.countSubmission(err, nil)
		return nil, err
	}
	s.countSubmission(nil, result)

	result.UpdatedUser = s.reloadUser(ctx, userID)
	return result, nil
}

// SubmitSession scores answers keyed by a client-chosen session id. The test row is
// created on first use so that a replay of the same session id is rejected.
func (s *ProficiencyService) SubmitSession(ctx context.Context, userID uint, sessionID string, languages []string, answers []AnswerInput) (*TestResult, error) {
	if sessionID == "" {
		return nil, NewValidationError("test_session_id is required")
	}
	if len(answers) == 0 {
		return nil, NewValidationError("at least one answer is required")
	}

	var result *TestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var test models.OnboardingTest
		err := tx.Where("session_id = ?", sessionID).First(&test).Error
		switch {
		case err == nil:
			if test.UserID != userID {
				return NewNotFoundError("test")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			t, err := s.sessionTest(tx, userID, sessionID, languages, answers)
			if err != nil {
				return err
			}
			test = *t
		default:
			return err
		}

		result, err = s.submit(tx, &test, answers)
		return err
	})
	if err != nil {
		s.countSubmission(err, nil)
		return nil, err
	}
	s.countSubmission(nil, result)

	result.UpdatedUser = s.reloadUser(ctx, userID)
	return result, nil
}

func (s *ProficiencyService) sessionTest(tx *gorm.DB, userID uint, sessionID string, languages []string, answers []AnswerInput) (*models.OnboardingTest, error) {
	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		if !slices.Contains(ids, a.QuestionID) {
			ids = append(ids, a.QuestionID)
		}
	}
	questions, err := questionsByID(tx, ids)
	if err != nil {
		return nil, err
	}

	langs := models.NormalizeLanguages(languages)
	for _, id := range ids {
		q, ok := questions[id]
		if !ok {
			return nil, NewValidationError("unknown question %d", id)
		}
		if len(languages) > 0 && !slices.Contains(langs, q.Language) {
			return nil, NewValidationError("question %d is not in the submitted languages", id)
		}
		if len(languages) == 0 && !slices.Contains(langs, q.Language) {
			langs = append(langs, q.Language)
		}
	}

	test := models.OnboardingTest{
		UserID:         userID,
		SessionID:      sessionID,
		Languages:      langs,
		QuestionIDs:    ids,
		Status:         models.TestInProgress,
		TotalQuestions: len(ids),
	}
	if err := tx.Create(&test).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, NewInvalidStateError("test session %s was already submitted", sessionID)
		}
		return nil, err
	}
	return &test, nil
}

func (s *ProficiencyService) submit(tx *gorm.DB, test *models.OnboardingTest, answers []AnswerInput) (*TestResult, error) {
	if test.Status != models.TestInProgress {
		return nil, NewInvalidStateError("test %d was already submitted", test.ID)
	}

	questions, err := questionsByID(tx, test.QuestionIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	byLang := make(map[string]models.LanguageResult)
	for _, id := range test.QuestionIDs {
		if q, ok := questions[id]; ok {
			r := byLang[q.Language]
			r.Total++
			byLang[q.Language] = r
		}
	}

	seen := make(map[uint]bool, len(answers))
	rows := make([]models.UserQuestionAnswer, 0, len(answers))
	correct := 0
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok || !slices.Contains(test.QuestionIDs, a.QuestionID) {
			return nil, NewValidationError("question %d is not part of this test", a.QuestionID)
		}
		if seen[a.QuestionID] {
			return nil, NewValidationError("question %d answered twice", a.QuestionID)
		}
		seen[a.QuestionID] = true
		if a.SelectedAnswer < 0 || a.SelectedAnswer >= len(q.Options) {
			return nil, NewValidationError("answer for question %d is out of range", a.QuestionID)
		}

		isCorrect := a.SelectedAnswer == q.CorrectAnswer
		if isCorrect {
			correct++
			r := byLang[q.Language]
			r.Correct++
			byLang[q.Language] = r
		}
		rows = append(rows, models.UserQuestionAnswer{
			UserID:         test.UserID,
			TestID:         test.ID,
			QuestionID:     a.QuestionID,
			TestSessionID:  test.SessionID,
			SelectedAnswer: a.SelectedAnswer,
			IsCorrect:      isCorrect,
			AnsweredAt:     now,
		})
	}

	total := len(test.QuestionIDs)
	score := percent(correct, total)
	passed := total > 0 && score >= s.passThreshold
	for lang, r := range byLang {
		r.Score = percent(r.Correct, r.Total)
		r.Passed = r.Total > 0 && r.Score >= s.passThreshold
		byLang[lang] = r
	}

	// Conditional transition: only one submitter can move the row out of in_progress.
	test.Status = models.TestSubmitted
	test.Score = &score
	test.Passed = passed
	test.TotalQuestions = total
	test.CorrectAnswers = correct
	test.ResultsByLanguage = byLang
	test.CompletedAt = &now
	res := tx.Model(test).
		Where("status = ?", models.TestInProgress).
		Select("status", "score", "passed", "total_questions", "correct_answers", "results_by_language", "completed_at").
		Updates(test)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewInvalidStateError("test %d was already submitted", test.ID)
	}

	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("store answers: %w", err)
		}
	}

	for lang, r := range byLang {
		if err := recordProficiency(tx, test.UserID, lang, r, now); err != nil {
			return nil, err
		}
	}

	userUpdates := map[string]interface{}{"onboarding_score": score}
	if passed {
		userUpdates["onboarding_status"] = models.OnboardingCompleted
		userUpdates["onboarding_completed_at"] = now
	}
	q := tx.Model(&models.User{}).Where("id = ?", test.UserID)
	if !passed {
		// A failed retake never demotes a user who already completed onboarding.
		q = q.Where("onboarding_status <> ?", models.OnboardingCompleted)
		userUpdates["onboarding_status"] = models.OnboardingFailed
	}
	if err := q.Updates(userUpdates).Error; err != nil {
		return nil, err
	}

	s.log.Info("onboarding test submitted",
		"user_id", test.UserID, "test_id", test.ID, "score", score, "passed", passed)

	return &TestResult{
		TestID:              test.ID,
		SessionID:           test.SessionID,
		TotalQuestions:      total,
		CorrectAnswers:      correct,
		Score:               score,
		Passed:              passed,
		QuestionsByLanguage: byLang,
	}, nil
}

// recordProficiency keeps a pass once earned; the score always reflects the latest attempt.
func recordProficiency(tx *gorm.DB, userID uint, lang string, r models.LanguageResult, at time.Time) error {
	var ul models.UserLanguage
	err := tx.Where("user_id = ? AND language = ?", userID, lang).First(&ul).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ul = models.UserLanguage{UserID: userID, Language: lang}
	} else if err != nil {
		return err
	}
	score := r.Score
	ul.ProficiencyScore = &score
	ul.ProficiencyPassed = ul.ProficiencyPassed || r.Passed
	ul.AssessedAt = &at
	return tx.Save(&ul).Error
}

func (s *ProficiencyService) countSubmission(err error, res *TestResult) {
	switch {
	case err != nil:
		s.metrics.OnboardingSubmitted.WithLabelValues("rejected").Inc()
	case res.Passed:
		s.metrics.OnboardingSubmitted.WithLabelValues("passed").Inc()
	default:
		s.metrics.OnboardingSubmitted.WithLabelValues("failed").Inc()
	}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

// reloadUser fetches the user after a committed submission. A failed reload is logged
// and yields nil.
func (s *ProficiencyService) reloadUser(ctx context.Context, userID uint) *models.User {
	user, err := loadUser(s.db.WithContext(ctx), userID)
	if err != nil {
		s.log.Warn("failed to reload user after submission", "user_id", userID, "error", err)
		return nil
	}
	return user
}
