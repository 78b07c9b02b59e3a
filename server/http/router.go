package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"svs-mapping/internal/config"
	mapHnd "svs-mapping/internal/mapping/handler"
	"svs-mapping/internal/middleware"
	"svs-mapping/server/http/handlers"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, h *mapHnd.Handler, db handlers.Pinger) *chi.Mux {
	r := chi.NewRouter()

	// порядок важен: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) << 20))

	// health-check
	r.Get("/health", handlers.Health(db))

	// запись ограничиваем по частоте, чтение: нет
	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Route("/api/svs", func(r chi.Router) {
		r.Get("/mappings", h.ListMappings)
		r.Get("/export", h.Export)
		r.Get("/stats", h.Stats)
		r.Get("/updates", h.Updates)

		r.With(limit).Post("/materials", h.Materials)
		r.With(limit).Post("/mappings", h.SaveMapping)
	})
	r.With(limit).Post("/api/products/import", h.ImportProducts)

	return r
}
