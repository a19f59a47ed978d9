// Package router wires the grocery routes and applies the middleware chain
// (RequestID → Metrics → Timeout).
package router

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery/handler"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/ratelimit"
)

// Options carries the optional pieces of the router. A nil Limiter
// disables per-user limits on resolves.
type Options struct {
	Server  config.ServerConfig
	Metrics *metrics.Metrics
	Health  *health.Checker
	Limiter *ratelimit.Limiter
}

// New builds the grocery HTTP handler.
//
// Route table:
//
//	POST /grocery/cart-options?recipe_id=&user_id=  → resolve a recipe
//	GET  /grocery/cart-options/{id}                 → stored cart options
//	POST /grocery/custom-cart                       → assemble a cart
//	GET  /grocery/carts/{id}                        → stored cart
//	POST /recipes/generate                          → generate and store a recipe
//	GET  /health/live, /health/ready
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	var cartOptions http.Handler = http.HandlerFunc(h.CartOptions)
	if opts.Limiter != nil {
		cartOptions = middleware.RateLimit(opts.Limiter, userFromQuery)(cartOptions)
	}
	mux.Handle("POST /grocery/cart-options", cartOptions)
	mux.HandleFunc("GET /grocery/cart-options/{id}", h.GetCartOptions)
	mux.HandleFunc("POST /grocery/custom-cart", h.CustomCart)
	mux.HandleFunc("GET /grocery/carts/{id}", h.GetCart)
	mux.HandleFunc("POST /recipes/generate", h.GenerateRecipe)

	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// request → RequestID → Metrics → Timeout → mux
	var chain http.Handler = mux
	chain = middleware.Timeout(opts.Server.RequestTimeout)(chain)
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}

func userFromQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}
