package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
)

// VoteEngine is the vote API the handlers drive.
type VoteEngine interface {
	CastVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID, direction models.VoteDirection) (*models.VoteTally, error)
	RemoveVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID) error
	GetUserVotes(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) (map[uuid.UUID]models.VoteDirection, error)
	ListTargets(ctx context.Context, targetType models.VoteContentType, postID *uuid.UUID, sort string, limit int) ([]*models.Target, error)
	CreatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	DeleteTarget(ctx context.Context, actorID uuid.UUID, ref models.TargetRef) error
}

// Server holds all handler dependencies
type Server struct {
	Engine         VoteEngine
	Metrics        *utils.MetricsCollector
	RequestTimeout time.Duration
	logger         *zap.Logger
}

// NewServer creates a new Server instance with the given components
func NewServer(engine VoteEngine, metrics *utils.MetricsCollector, requestTimeout time.Duration, logger *zap.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second // Default timeout for actor requests
	}
	return &Server{
		Engine:         engine,
		Metrics:        metrics,
		RequestTimeout: requestTimeout,
		logger:         logger.Named("http"),
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// respondError maps AppErrors to their HTTP status. Anything else is a 500
// whose detail stays in the log. Only server-side failures count as errors.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		appErr = utils.NewAppError(utils.ErrDatabase, "internal error", err)
	}

	status := utils.AppErrorToHTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.Metrics.IncrementErrors()
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{Code: appErr.Code, Message: appErr.Message})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.RequestTimeout)
}
