// Package httpapi 把命令层暴露为本地 HTTP/JSON 接口，供 Web 前端调用。
package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/iabetor/soundmirror/internal/history"
	"github.com/iabetor/soundmirror/internal/speech"
)

// Commands 是 HTTP 层用到的命令集合，command.Surface 实现它。
type Commands interface {
	SpeakText(ctx context.Context, req speech.Request) (speech.Response, error)
	GetVoices(ctx context.Context, tag string) []string
	GetPreciseTime() uint64
	Invoke(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// HistoryLister 列出最近的合成记录，history.Store 实现它。
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// RouterConfig 路由配置，来自 config.ServerConfig。
type RouterConfig struct {
	// APIKey 非空时 /v1 和 /invoke 需要 X-API-Key 或 Authorization: Bearer。
	APIKey string
	// CorsOrigins 为空时允许所有来源（开发模式）。
	CorsOrigins []string
	// RateLimit 每个 IP 每分钟的请求数，0 表示不限流。
	RateLimit int
}

// NewRouter 创建 HTTP 路由。
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}
	if len(cfg.CorsOrigins) > 0 {
		allowedOrigins = cfg.CorsOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: len(cfg.CorsOrigins) > 0,
		MaxAge:           300,
	}))

	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(APIKeyAuth(cfg.APIKey))
		}

		r.Route("/v1", func(r chi.Router) {
			r.Post("/speak", h.Speak)
			r.Get("/voices", h.Voices)
			r.Get("/time", h.Time)
			r.Get("/languages", h.Languages)
			r.Get("/history", h.History)
		})
		r.Post("/invoke/{command}", h.Invoke)
	})

	return r
}
