package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scholar-hub/internal/middleware"
)

// NewRouter mounts every route behind CORS and JWT verification. A nil
// gatherer leaves /metrics unmounted.
func (s *Server) NewRouter(auth *middleware.Authenticator, cors *middleware.CORSConfig, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth())
	mux.HandleFunc("/vote", s.HandleVote())
	mux.HandleFunc("/votes", s.HandleGetVotes())
	mux.HandleFunc("/posts", s.HandlePosts())
	mux.HandleFunc("/comments", s.HandleComments())
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return middleware.CORSMiddleware(cors)(auth.Middleware(mux))
}
