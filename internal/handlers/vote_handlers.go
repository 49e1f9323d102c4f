package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"scholar-hub/internal/middleware"
	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
)

// VoteRequest is the body of POST /vote
type VoteRequest struct {
	TargetType string `json:"targetType"`
	TargetID   string `json:"targetId"`
	VoteType   int    `json:"voteType"` // 1 or -1
}

// HandleVote casts (POST) or removes (DELETE) the caller's vote
func (s *Server) HandleVote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		switch r.Method {
		case http.MethodPost:
			s.castVote(w, r)
		case http.MethodDelete:
			s.removeVote(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, utils.NewValidationError("invalid request body"))
		return
	}

	targetType, targetID, err := parseTarget(req.TargetType, req.TargetID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	tally, err := s.Engine.CastVote(ctx, actorID, targetType, targetID, models.VoteDirection(req.VoteType))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tally)
}

func (s *Server) removeVote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
		return
	}

	query := r.URL.Query()
	targetType, targetID, err := parseTarget(query.Get("targetType"), query.Get("targetId"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.Engine.RemoveVote(ctx, actorID, targetType, targetID); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleGetVotes returns the caller's votes on a batch of targets:
// GET /votes?targetType=post&ids=a,b,c
func (s *Server) HandleGetVotes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		actorID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
			return
		}

		query := r.URL.Query()
		targetType := models.VoteContentType(query.Get("targetType"))
		if !targetType.Valid() {
			s.respondError(w, r, utils.NewValidationError("invalid targetType %q", targetType))
			return
		}

		var ids []uuid.UUID
		for _, raw := range strings.Split(query.Get("ids"), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				s.respondError(w, r, utils.NewValidationError("invalid id %q", raw))
				return
			}
			ids = append(ids, id)
		}

		ctx, cancel := s.requestContext(r)
		defer cancel()

		votes, err := s.Engine.GetUserVotes(ctx, actorID, targetType, ids)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, votes)
	}
}

func parseTarget(rawType, rawID string) (models.VoteContentType, uuid.UUID, error) {
	targetType := models.VoteContentType(rawType)
	if !targetType.Valid() {
		return "", uuid.Nil, utils.NewValidationError("invalid targetType %q", rawType)
	}
	targetID, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, utils.NewValidationError("invalid targetId format")
	}
	return targetType, targetID, nil
}
