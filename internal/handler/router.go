package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"virology-test-service/config"
	"virology-test-service/internal/middleware"
	"virology-test-service/pkg/httputil"
)

// NewRouter はルーターを生成する。
// 署名ミドルウェアを最外殻に置くことで、403・404・パニック回復後の500を含む
// すべてのレスポンスが署名されることを保証する。
func NewRouter(h *VirologyHandler, signer func(http.Handler) http.Handler, authenticate middleware.AuthPredicate, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(signer)
	if cfg.OtelEnabled {
		r.Use(otelhttp.NewMiddleware(cfg.OtelServiceName))
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.BearerAuth(authenticate))

	// ルート定義
	r.Route("/virology-test", func(r chi.Router) {
		r.Post("/results", h.PollResult)
		r.Post("/home-kit/order", h.OrderHomeKit)
		r.Post("/home-kit/register", h.RegisterHomeKit)
	})

	// 未知のメソッド・パスは空ボディの404
	notFound := func(w http.ResponseWriter, r *http.Request) {
		httputil.Empty(w, http.StatusNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}
