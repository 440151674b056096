package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"scriptorium/config"
	"scriptorium/models"
	"scriptorium/search"
	"scriptorium/services"
	"scriptorium/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	scrollsSubmittedCounter prometheus.Counter
	scrollsPublishedCounter prometheus.Counter
	decisionsCounter        *prometheus.CounterVec
)

func init() {
	scrollsSubmittedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scrolls_submitted_total",
			Help: "Total number of scroll submissions accepted for processing.",
		},
	)
	scrollsPublishedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scrolls_published_total",
			Help: "Total number of scrolls that passed the reproducibility gate.",
		},
	)
	decisionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Total number of policy decisions, by outcome.",
		},
		[]string{"decision"},
	)
	prometheus.MustRegister(scrollsSubmittedCounter, scrollsPublishedCounter, decisionsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Scholar{},
		&models.Sanction{},
		&models.Scroll{},
		&models.ScrollAuthor{},
		&models.IDSequence{},
		&models.Review{},
		&models.DecisionRecord{},
		&models.ArtifactBundle{},
		&models.Replication{},
		&models.Citation{},
		&models.AuditEvent{},
	)

	// Setup Services
	oracle := search.NewSimilarityIndex(cfg.MeiliURL, cfg.MeiliAPIKey, logging)
	defer oracle.Close()

	archive, err := storage.NewArchive(cfg)
	if err != nil {
		logging.Fatal("Archive client creation failed", zap.Error(err))
	}
	if archive == nil {
		logging.Info("Publication archive disabled.")
	}

	auditService := services.NewAuditService(db, logging)
	scholarService := services.NewScholarService(db, logging)
	citationService := services.NewCitationService(db, logging)
	policyEngine := services.NewPolicyEngine(db, logging, cfg.Policy)
	scrollService := services.NewScrollService(db, logging, cfg.Policy, oracle)
	integrityService := services.NewIntegrityService(db, logging, cfg.Policy, oracle)

	var archiver services.PublicationArchiver
	if archive != nil {
		archiver = archive
	}
	reproService := services.NewReproService(db, logging, citationService, archiver)
	reviewService := services.NewReviewService(db, logging, cfg.Policy, policyEngine, reproService)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupScholarRoutes(router, scholarService, integrityService, logging)
	setupScrollRoutes(router, scrollService, reviewService, policyEngine, integrityService, auditService, logging)
	setupReviewRoutes(router, reviewService, logging)
	setupReproRoutes(router, reproService, logging)
	setupCitationRoutes(router, citationService, logging)
	setupIntegrityRoutes(router, integrityService, logging)
	setupAuditRoutes(router, auditService, logging)

	// Setup Cron: nächtliche Neuberechnung der abgeleiteten Werte
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled metric recompute...")
		if err := citationService.RecomputeAllCounts(); err != nil {
			logging.Error("Citation count recompute failed", zap.Error(err))
			return
		}
		count, err := scholarService.RecomputeAll()
		if err != nil {
			logging.Error("Scholar metric recompute failed", zap.Error(err))
		} else {
			logging.Info("Metric recompute completed", zap.Int("scholars", count))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupScholarRoutes(router *gin.Engine, scholars *services.ScholarService, integrity *services.IntegrityService, log *zap.Logger) {
	rg := router.Group("/scholars")

	rg.POST("/", func(c *gin.Context) {
		var reg services.ScholarRegistration
		if err := c.ShouldBindJSON(&reg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		scholar, err := scholars.Register(reg)
		if err != nil {
			if errors.Is(err, services.ErrNameRequired) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Scholar registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, scholar)
	})

	rg.GET("/leaderboard", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		board, err := scholars.Leaderboard(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, board)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scholar id"})
			return
		}
		scholar, err := scholars.Get(uint(id))
		if err != nil {
			if errors.Is(err, services.ErrScholarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scholar not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, scholar)
	})

	rg.GET("/:id/sanctions", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scholar id"})
			return
		}
		sanctions, err := integrity.ActiveSanctions(uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, sanctions)
	})

	rg.POST("/:id/recompute", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scholar id"})
			return
		}
		scholar, err := scholars.RecomputeMetrics(uint(id))
		if err != nil {
			if errors.Is(err, services.ErrScholarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scholar not found"})
				return
			}
			log.Error("Metric recompute failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, scholar)
	})
}

func setupScrollRoutes(router *gin.Engine, scrolls *services.ScrollService, reviews *services.ReviewService, engine *services.PolicyEngine, integrity *services.IntegrityService, audit *services.AuditService, log *zap.Logger) {
	rg := router.Group("/scrolls")

	rg.POST("/", func(c *gin.Context) {
		var sub services.ScrollSubmission
		if err := c.ShouldBindJSON(&sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		outcome, err := scrolls.Submit(sub)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrScholarNotFound):
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown author"})
			case errors.Is(err, services.ErrSubmissionBlocked):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			default:
				log.Error("Scroll submission failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		scrollsSubmittedCounter.Inc()

		// Plagiatsprüfung läuft asynchron; sie blockiert die Einreichung nie.
		if outcome.Screening.Passed {
			scrollID := outcome.Scroll.ScrollID
			go func() {
				if _, err := integrity.PlagiarismCheck(scrollID); err != nil {
					log.Error("Async plagiarism check failed",
						zap.String("scroll_id", scrollID), zap.Error(err))
				}
			}()
		}
		c.JSON(http.StatusCreated, outcome)
	})

	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		list, err := scrolls.List(models.ScrollStatus(c.Query("status")), c.Query("domain"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/stats", func(c *gin.Context) {
		stats, err := scrolls.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	rg.GET("/:id", func(c *gin.Context) {
		scroll, err := scrolls.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrScrollNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, scroll)
	})

	rg.POST("/:id/revisions", func(c *gin.Context) {
		var rev services.ScrollRevision
		if err := c.ShouldBindJSON(&rev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		scroll, err := scrolls.Revise(c.Param("id"), rev)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrScrollNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
			case errors.Is(err, services.ErrNotAnAuthor):
				// Bewusst identisch zu not-found, damit Nicht-Autoren keine
				// Existenzinformation erhalten.
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
			default:
				var te *services.TransitionError
				if errors.As(err, &te) {
					c.JSON(http.StatusConflict, gin.H{"error": te.Error()})
					return
				}
				log.Error("Revision failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		c.JSON(http.StatusOK, scroll)
	})

	rg.POST("/:id/retract", func(c *gin.Context) {
		var req struct {
			AuthorID uint   `json:"author_id"`
			Reason   string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.AuthorID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		scroll, err := scrolls.Retract(c.Param("id"), req.AuthorID, req.Reason)
		if err != nil {
			// Nicht-Autoren bekommen dieselbe Antwort wie bei einem
			// unbekannten Scroll.
			if errors.Is(err, services.ErrScrollNotFound) || errors.Is(err, services.ErrNotAnAuthor) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			var te *services.TransitionError
			if errors.As(err, &te) {
				c.JSON(http.StatusConflict, gin.H{"error": te.Error()})
				return
			}
			log.Error("Retraction failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, scroll)
	})

	rg.POST("/:id/supersede", func(c *gin.Context) {
		var req struct {
			SuccessorID string `json:"successor_id"`
			ActorID     string `json:"actor_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.SuccessorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.ActorID == "" {
			req.ActorID = services.ActorSystem
		}
		scroll, err := scrolls.Supersede(c.Param("id"), req.SuccessorID, req.ActorID)
		if err != nil {
			if errors.Is(err, services.ErrScrollNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			var te *services.TransitionError
			if errors.As(err, &te) {
				c.JSON(http.StatusConflict, gin.H{"error": te.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, scroll)
	})

	rg.GET("/:id/reviews", func(c *gin.Context) {
		round, _ := strconv.Atoi(c.Query("round"))
		list, err := reviews.ListForScroll(c.Param("id"), round)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/:id/decisions", func(c *gin.Context) {
		records, err := engine.RecordsForScroll(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	rg.GET("/:id/history", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		events, err := audit.ForTarget(c.Param("id"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, events)
	})
}

func setupReviewRoutes(router *gin.Engine, reviews *services.ReviewService, log *zap.Logger) {
	rg := router.Group("/reviews")

	rg.POST("/", func(c *gin.Context) {
		var sub services.ReviewSubmission
		if err := c.ShouldBindJSON(&sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		outcome, err := reviews.Submit(sub)
		if err != nil {
			var ie *services.IntakeError
			if errors.As(err, &ie) {
				status := http.StatusUnprocessableEntity
				if ie.Code == "scroll_not_found" || ie.Code == "reviewer_not_found" {
					status = http.StatusNotFound
				}
				c.JSON(status, gin.H{"error": ie.Detail, "code": ie.Code})
				return
			}
			log.Error("Review submission failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if outcome.Decision != nil {
			decisionsCounter.WithLabelValues(string(outcome.Decision.Decision)).Inc()
		}
		c.JSON(http.StatusCreated, outcome)
	})

	rg.GET("/queue/:reviewerID", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("reviewerID"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reviewer id"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		queue, err := reviews.Queue(uint(id), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, queue)
	})
}

func setupReproRoutes(router *gin.Engine, repro *services.ReproService, log *zap.Logger) {
	rg := router.Group("/repro")

	rg.POST("/bundles", func(c *gin.Context) {
		var in services.BundleInput
		if err := c.ShouldBindJSON(&in); err != nil || in.ScrollID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		bundle, err := repro.AttachBundle(in)
		if err != nil {
			if errors.Is(err, services.ErrScrollNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			log.Error("Bundle attach failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, bundle)
	})

	rg.POST("/replications", func(c *gin.Context) {
		var in services.ReplicationInput
		if err := c.ShouldBindJSON(&in); err != nil || in.ScrollID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		replication, gate, err := repro.RecordReplication(in)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrScrollNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
			case errors.Is(err, services.ErrBundleNotFound):
				c.JSON(http.StatusConflict, gin.H{"error": "no artifact bundle attached"})
			default:
				log.Error("Replication record failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		if gate != nil && gate.Passed {
			scrollsPublishedCounter.Inc()
		}
		c.JSON(http.StatusCreated, gin.H{"replication": replication, "gate": gate})
	})

	rg.POST("/gate/:id", func(c *gin.Context) {
		result, err := repro.RunGate(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrScrollNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if result.Passed {
			scrollsPublishedCounter.Inc()
		}
		c.JSON(http.StatusOK, result)
	})

	rg.GET("/:id/replications", func(c *gin.Context) {
		reps, err := repro.ReplicationsForScroll(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, reps)
	})
}

func setupCitationRoutes(router *gin.Engine, citations *services.CitationService, log *zap.Logger) {
	rg := router.Group("/citations")

	rg.GET("/most-cited", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		list, err := citations.MostCited(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/:id/cited-by", func(c *gin.Context) {
		list, err := citations.CitedBy(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/:id/cites", func(c *gin.Context) {
		list, err := citations.Cites(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/:id/lineage", func(c *gin.Context) {
		depth, _ := strconv.Atoi(c.DefaultQuery("max_depth", "10"))
		tree, err := citations.TraceLineage(c.Param("id"), depth)
		if err != nil {
			log.Error("Lineage trace failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, tree)
	})

	rg.GET("/contradictions", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		list, err := citations.FindContradictions(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})
}

func setupIntegrityRoutes(router *gin.Engine, integrity *services.IntegrityService, log *zap.Logger) {
	rg := router.Group("/integrity")

	rg.POST("/plagiarism-check/:id", func(c *gin.Context) {
		report, err := integrity.PlagiarismCheck(c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scroll not found"})
				return
			}
			log.Error("Plagiarism check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/sanctions", func(c *gin.Context) {
		var req struct {
			ScholarID    uint                `json:"scholar_id"`
			SanctionType models.SanctionType `json:"sanction_type"`
			Reason       string              `json:"reason"`
			ScrollID     *string             `json:"scroll_id"`
			DurationDays int                 `json:"duration_days"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ScholarID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		duration := time.Duration(req.DurationDays) * 24 * time.Hour
		sanction, err := integrity.ApplySanction(req.ScholarID, req.SanctionType, req.Reason, req.ScrollID, duration)
		if err != nil {
			if errors.Is(err, services.ErrScholarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scholar not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, sanction)
	})

	rg.GET("/citation-rings", func(c *gin.Context) {
		findings, err := integrity.DetectCitationRings()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, findings)
	})

	rg.GET("/sybil-check/:id", func(c *gin.Context) {
		scholarID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scholar id"})
			return
		}
		report, err := integrity.CheckSybilVelocity(uint(scholarID))
		if err != nil {
			if errors.Is(err, services.ErrScholarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "scholar not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

func setupAuditRoutes(router *gin.Engine, audit *services.AuditService, log *zap.Logger) {
	rg := router.Group("/audit")

	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		events, err := audit.Recent(models.AuditAction(c.Query("action")), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, events)
	})

	rg.GET("/actor/:id", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		events, err := audit.ForActor(c.Param("id"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, events)
	})
}
