package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"scholar-hub/internal/middleware"
	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
)

// CreatePostRequest is the body of POST /posts
type CreatePostRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// CreateCommentRequest is the body of POST /comments
type CreateCommentRequest struct {
	PostID      string `json:"postId"`
	ParentID    string `json:"parentId,omitempty"`
	Content     string `json:"content"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// HandlePosts lists (GET), creates (POST) or soft-deletes (DELETE ?id=) posts
func (s *Server) HandlePosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		switch r.Method {
		case http.MethodGet:
			s.listTargets(w, r, models.PostVote)
		case http.MethodPost:
			s.createPost(w, r)
		case http.MethodDelete:
			s.deleteTarget(w, r, models.PostVote)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleComments lists (GET), creates (POST) or soft-deletes (DELETE ?id=) comments
func (s *Server) HandleComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		switch r.Method {
		case http.MethodGet:
			s.listTargets(w, r, models.CommentVote)
		case http.MethodPost:
			s.createComment(w, r)
		case http.MethodDelete:
			s.deleteTarget(w, r, models.CommentVote)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	authorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, utils.NewValidationError("invalid request body"))
		return
	}

	post := &models.Post{
		Title:       req.Title,
		Content:     req.Content,
		AuthorID:    authorID,
		IsAnonymous: req.IsAnonymous,
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.Engine.CreatePost(ctx, post); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, post.Target())
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	authorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, utils.NewValidationError("invalid request body"))
		return
	}

	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		s.respondError(w, r, utils.NewValidationError("invalid postId format"))
		return
	}
	comment := &models.Comment{
		PostID:      postID,
		Content:     req.Content,
		AuthorID:    authorID,
		IsAnonymous: req.IsAnonymous,
	}
	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			s.respondError(w, r, utils.NewValidationError("invalid parentId format"))
			return
		}
		comment.ParentID = &parentID
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.Engine.CreateComment(ctx, comment); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, comment.Target())
}

func (s *Server) deleteTarget(w http.ResponseWriter, r *http.Request, targetType models.VoteContentType) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, r, utils.NewUnauthorizedError("missing caller identity"))
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		s.respondError(w, r, utils.NewValidationError("invalid id format"))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.Engine.DeleteTarget(ctx, actorID, models.TargetRef{Type: targetType, ID: id}); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
