package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/usecase"
)

// Catalog is the read and retention surface the API serves.
type Catalog interface {
	Sample(ctx context.Context, n int, minConfidence float64) ([]domain.PaperRecord, error)
	Stats(ctx context.Context) ([]domain.ConferenceStats, error)
	Breakdown(ctx context.Context) ([]domain.ConferenceBreakdown, error)
	Wipe(ctx context.Context, confirm bool) bool
	PurgeExpired(ctx context.Context, days int) int64
	PurgeConference(ctx context.Context, name string) int64
}

// Runner triggers pipeline runs.
type Runner interface {
	Refresh(ctx context.Context) (domain.RunStats, error)
	SmartRefresh(ctx context.Context) (domain.RunStats, error)
	SearchConference(ctx context.Context, query string) (string, domain.RunStats, error)
}

// Classifier answers ad-hoc venue lookups.
type Classifier interface {
	Classify(title, abstract, comment string) (domain.MatchResult, bool)
	FindAll(text string) []domain.MatchResult
}

// Metrics is the optional instrumentation hooked into the router.
type Metrics interface {
	Handler() http.Handler
	Middleware() gin.HandlerFunc
}

// RunStatus reports the latest scheduled run.
type RunStatus interface {
	LastRun() (usecase.RunReport, bool)
}

// Deps wires the use cases into the router.
type Deps struct {
	Catalog    Catalog
	Runner     Runner
	Classifier Classifier
	Metrics    Metrics
	Status     RunStatus
	Logger     *slog.Logger

	// SampleSize and MinConfidence are used when the request does not say.
	SampleSize    int
	MinConfidence float64
	RetentionDays int
}

type server struct {
	Deps
	logger *slog.Logger
}

// NewRouter constructs a gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.SampleSize <= 0 {
		deps.SampleSize = 5
	}
	s := &server{Deps: deps, logger: logger.With("component", "api")}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	registerPaperRoutes(api, s)
	registerRunRoutes(api, s)
	return r
}

// Serve runs the engine on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.Status != nil {
		if last, ok := s.Status.LastRun(); ok {
			run := toRunResponse(last.Stats, "", last.Err)
			resp["last_run"] = gin.H{
				"trigger":     last.Trigger.UTC().Format(time.RFC3339),
				"duration_ms": last.Duration.Milliseconds(),
				"stats":       run,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotConfirmed):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnknownConference), domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
