// Package router assembles the HTTP surface from the services.
package router

import (
	"log/slog"
	"net/http"

	"lakra-backend/internal/config"
	"lakra-backend/internal/handlers"
	"lakra-backend/internal/logging"
	"lakra-backend/internal/metrics"
	"lakra-backend/internal/middleware"
	"lakra-backend/internal/scoring"
	"lakra-backend/internal/services"
	"lakra-backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps are the collaborators the router needs. Gatherer may be nil, in which case
// /metrics is not mounted.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Blobs    storage.BlobStore
	Scorer   scoring.Scorer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Services is exposed so callers (and tests) can reach the same instances the
// handlers use.
type Services struct {
	Auth        *services.AuthService
	Users       *services.UserService
	Sentences   *services.SentenceService
	Distributor *services.DistributorService
	Annotations *services.AnnotationService
	Evaluations *services.EvaluationService
	MT          *services.MTQualityService
	Proficiency *services.ProficiencyService
	Stats       *services.StatsService
}

func NewServices(d Deps) *Services {
	cfg, m := d.Config, d.Metrics
	return &Services{
		Auth:        services.NewAuthService(d.DB, cfg.SecretKey, cfg.AccessTokenExpiry),
		Users:       services.NewUserService(d.DB),
		Sentences:   services.NewSentenceService(d.DB, m),
		Distributor: services.NewDistributorService(d.DB, cfg.MaxAnnotationsPerSentence, m),
		Annotations: services.NewAnnotationService(d.DB, d.Blobs, cfg.MaxFileSizeBytes(), m),
		Evaluations: services.NewEvaluationService(d.DB, m),
		MT:          services.NewMTQualityService(d.DB, d.Scorer, cfg.MTBatchLimit, cfg.MTBatchConcurrency, m),
		Proficiency: services.NewProficiencyService(d.DB, cfg.OnboardingPassThreshold, cfg.OnboardingQuestionCount, m),
		Stats:       services.NewStatsService(d.DB, cfg.StatsCacheTTL),
	}
}

// New builds the gin engine with every route mounted.
func New(d Deps, svc *Services) *gin.Engine {
	cfg := d.Config
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(d.Metrics.Middleware())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", handlers.NewHealthHandler(d.DB).Health)

	authHandler := handlers.NewAuthHandler(svc.Auth)
	sentenceHandler := handlers.NewSentenceHandler(svc.Distributor, svc.Sentences)
	annotationHandler := handlers.NewAnnotationHandler(svc.Annotations, svc.Evaluations)
	evaluationHandler := handlers.NewEvaluationHandler(svc.Evaluations, svc.Stats)
	mtHandler := handlers.NewMTQualityHandler(svc.MT, svc.Stats)
	onboardingHandler := handlers.NewOnboardingHandler(svc.Proficiency)
	adminHandler := handlers.NewAdminHandler(svc.Users, svc.Sentences, svc.Annotations, svc.MT, svc.Proficiency, svc.Stats)
	analyticsHandler := handlers.NewAnalyticsHandler(svc.Stats)

	api := r.Group("/api")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWTAuth(svc.Auth))
	{
		authed.GET("/me", authHandler.Me)
		authed.PUT("/me/guidelines-seen", authHandler.MarkGuidelinesSeen)
		authed.PUT("/me/profile", authHandler.UpdateProfile)
		authed.GET("/me/stats", evaluationHandler.UserStats)

		onboarding := authed.Group("/onboarding-tests")
		{
			onboarding.POST("", onboardingHandler.CreateTest)
			onboarding.GET("/my-tests", onboardingHandler.MyTests)
			onboarding.GET("/:id", onboardingHandler.GetTest)
			onboarding.POST("/:id/submit", onboardingHandler.SubmitTest)
		}
		authed.GET("/language-proficiency-questions", onboardingHandler.Questions)
		authed.POST("/language-proficiency-questions/submit", onboardingHandler.SubmitSession)

		sentences := authed.Group("/sentences")
		{
			sentences.GET("", sentenceHandler.List)
			sentences.GET("/next", middleware.RequireOnboarded(), sentenceHandler.Next)
			sentences.GET("/unannotated", middleware.RequireOnboarded(), sentenceHandler.Unannotated)
			sentences.GET("/:id", sentenceHandler.Get)
			sentences.POST("", middleware.RequireAdmin(), sentenceHandler.Create)
		}

		annotations := authed.Group("/annotations")
		{
			annotations.POST("", middleware.RequireOnboarded(), annotationHandler.Create)
			annotations.GET("", annotationHandler.ListMine)
			annotations.POST("/upload-voice", middleware.RequireOnboarded(), annotationHandler.UploadVoice)
			annotations.GET("/:id", annotationHandler.Get)
			annotations.PUT("/:id", annotationHandler.Update)
			annotations.DELETE("/:id", annotationHandler.Delete)
			annotations.GET("/:id/evaluations", annotationHandler.Evaluations)
		}

		evaluator := authed.Group("")
		evaluator.Use(middleware.RequireEvaluator())
		{
			evaluator.POST("/evaluations", evaluationHandler.Create)
			evaluator.PUT("/evaluations/:id", evaluationHandler.Update)
			evaluator.GET("/evaluations", evaluationHandler.ListMine)
			evaluator.GET("/evaluations/pending", evaluationHandler.Pending)
			evaluator.GET("/evaluator/stats", evaluationHandler.Stats)

			evaluator.GET("/mt-quality/pending", mtHandler.Pending)
			evaluator.POST("/mt-quality/assess", mtHandler.Assess)
			evaluator.POST("/mt-quality/batch-assess", mtHandler.BatchAssess)
			evaluator.PUT("/mt-quality/:id", mtHandler.Update)
			evaluator.GET("/mt-quality/my-assessments", mtHandler.Mine)
			evaluator.GET("/mt-quality/stats", mtHandler.Stats)
			evaluator.GET("/mt-quality/sentence/:id", mtHandler.BySentence)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.Stats)

			admin.GET("/sentences", adminHandler.ListSentences)
			admin.GET("/sentences/counts", adminHandler.SentenceCounts)
			admin.POST("/sentences/bulk", adminHandler.BulkSentences)
			admin.POST("/sentences/import-csv", adminHandler.ImportCSV)
			admin.GET("/sentences/:id/annotations", adminHandler.SentenceAnnotations)
			admin.DELETE("/sentences/:id", adminHandler.DeactivateSentence)
			admin.PUT("/sentences/:id/activate", adminHandler.ActivateSentence)

			admin.GET("/annotations", adminHandler.ListAnnotations)
			admin.GET("/annotations/export", adminHandler.ExportAnnotations)
			admin.PUT("/annotations/:id/archive", adminHandler.ArchiveAnnotation)
			admin.DELETE("/annotations/:id", adminHandler.DeleteAnnotation)

			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.PUT("/users/:id", adminHandler.UpdateUser)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.PUT("/users/:id/toggle-evaluator", adminHandler.ToggleEvaluator)
			admin.PUT("/users/:id/deactivate", adminHandler.DeactivateUser)
			admin.POST("/users/:id/reset-password", adminHandler.ResetPassword)

			admin.GET("/mt-quality", adminHandler.ListAssessments)

			admin.GET("/language-proficiency-questions", adminHandler.ListQuestions)
			admin.POST("/language-proficiency-questions", adminHandler.CreateQuestion)
			admin.PUT("/language-proficiency-questions/:id", adminHandler.UpdateQuestion)
			admin.DELETE("/language-proficiency-questions/:id", adminHandler.DeleteQuestion)

			analytics := admin.Group("/analytics")
			{
				analytics.GET("/user-growth", analyticsHandler.UserGrowth)
				analytics.GET("/error-distribution", analyticsHandler.ErrorDistribution)
				analytics.GET("/language-activity", analyticsHandler.LanguageActivity)
				analytics.GET("/daily-activity", analyticsHandler.DailyActivity)
				analytics.GET("/user-roles", analyticsHandler.UserRoles)
				analytics.GET("/quality-metrics", analyticsHandler.QualityMetrics)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "route not found", Kind: string(services.KindNotFound)})
	})
	return r
}
