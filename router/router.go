package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	handler "papanskor/internal/scoreboard"
	"papanskor/middleware"
	"papanskor/socket"
)

type Deps struct {
	Handler *handler.ScoreboardHandler
	Hub     *socket.Hub
	Auth    *middleware.Auth
	Limiter *middleware.RateLimiter
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.Instrument(pattern, h))
	}

	// WebSocket. Share-token viewers connect without signing in.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(d.Hub, w, r, middleware.CallerFrom(r.Context()))
	})
	route("/ws", d.Auth.Optional(wsHandler))

	// REST API
	h := d.Handler
	route("/api/scoreboards/create", d.Auth.Required(http.HandlerFunc(h.CreateScoreboard)))
	route("/api/scoreboards/delete", d.Auth.Required(http.HandlerFunc(h.DeleteScoreboard)))
	route("/api/scoreboards/update", d.Auth.Optional(d.Limiter.Limit(http.HandlerFunc(h.UpdateScoreboard))))
	route("/api/scoreboards", d.Auth.Optional(http.HandlerFunc(h.GetScoreboards)))
	route("/api/share/resolve", http.HandlerFunc(h.ResolveShare))

	mux.Handle("/metrics", promhttp.Handler())

	return middleware.CORSMiddleware(mux)
}
