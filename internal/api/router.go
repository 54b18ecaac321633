package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fablehq/storyvoice/internal/api/handlers"
	"github.com/fablehq/storyvoice/internal/api/middleware"
	"github.com/fablehq/storyvoice/internal/auth"
	"github.com/fablehq/storyvoice/internal/config"
	"github.com/fablehq/storyvoice/internal/queue"
	"github.com/fablehq/storyvoice/internal/tts"
	"github.com/fablehq/storyvoice/internal/voice"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	orch  *tts.Orchestrator
	jwt   *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, orch *tts.Orchestrator) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		orch:  orch,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis, rt.orch.Breakers())
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	queueClient := queue.NewClient(rt.cfg.Redis)
	narration := handlers.NewNarrationHandler(rt.orch, queueClient)
	voices := handlers.NewVoicesHandler(voice.NewCatalog(rt.db))
	stories := handlers.NewStoriesHandler()

	// Identity is optional: anonymous callers still narrate, they just
	// never reach the premium tier.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Identify)

		r.Post("/narration/paragraph", narration.Paragraph)
		r.Post("/narration/story", narration.Story)
		r.Post("/narration/story/async", narration.StoryAsync)

		r.Get("/voices", voices.List)
		r.Post("/stories/import", stories.Import)
	})

	return r
}
