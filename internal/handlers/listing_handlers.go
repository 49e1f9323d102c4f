package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
)

// listTargets serves GET /posts?sort=&limit= and GET /comments?postId=&sort=&limit=
func (s *Server) listTargets(w http.ResponseWriter, r *http.Request, targetType models.VoteContentType) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, r, utils.NewValidationError("invalid limit %q", raw))
			return
		}
		limit = n
	}

	var postID *uuid.UUID
	if raw := query.Get("postId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, r, utils.NewValidationError("invalid postId format"))
			return
		}
		postID = &id
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	targets, err := s.Engine.ListTargets(ctx, targetType, postID, query.Get("sort"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if targets == nil {
		targets = []*models.Target{}
	}
	s.respondJSON(w, http.StatusOK, targets)
}

// HandleHealth reports liveness and uptime
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"uptime": s.Metrics.Uptime().String(),
		})
	}
}
