// Package api serves registered models over HTTP. Listing endpoints accept
// the request criteria parameters (search, searchFields, filter, orderBy,
// sortedBy, with, withCount, searchJoin) on the query string.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/asaidimu/go-criteria/core/criteria"
	"github.com/asaidimu/go-criteria/core/persistence"
	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-Id"

// Store is the persistence surface the server reads from.
type Store interface {
	Repository(name string) (*persistence.Repository, error)
	Collections() []string
	Compiler() *criteria.Compiler
}

// Response is the envelope of every API response.
type Response struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents error details in API responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Documents []schema.Document `json:"documents"`
}

// Server wraps the persistence layer and provides HTTP handlers.
type Server struct {
	store  Store
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer creates a new API server instance.
func NewServer(store Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/collections", s.handleCollections)
	s.mux.HandleFunc("GET /api/{model}", s.handleFind)
	s.mux.HandleFunc("POST /api/{model}", s.handleCreate)
}

// ServeHTTP assigns a request id and dispatches to the routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	w.Header().Set(RequestIDHeader, id)
	ctx := context.WithValue(r.Context(), requestIDKey{}, id)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

type requestIDKey struct{}

// RequestID returns the id the server assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]any{"collections": s.store.Collections()})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	name := r.PathValue("model")

	repo, err := s.store.Repository(name)
	if err != nil {
		s.writeRepositoryError(w, logger, name, err)
		return
	}

	params := criteria.ParamsFromValues(r.URL.Query(), s.store.Compiler().Config())
	result, err := repo.Find(r.Context(), params)
	if err != nil {
		if criteria.IsInvalidCriteria(err) {
			logger.Debug("Rejected request criteria", zap.Error(err))
			s.writeError(w, http.StatusBadRequest, "INVALID_CRITERIA", err.Error(), nil)
			return
		}
		logger.Error("Query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "READ_FAILED", "Failed to read documents", err.Error())
		return
	}

	logger.Info("Query served", zap.String("model", name), zap.Int("count", result.Count))
	s.writeSuccess(w, http.StatusOK, result)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	name := r.PathValue("model")

	var req CreateRequest
	if err := parseJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body", err.Error())
		return
	}

	repo, err := s.store.Repository(name)
	if err != nil {
		s.writeRepositoryError(w, logger, name, err)
		return
	}

	result, err := repo.Create(r.Context(), req.Documents...)
	if err != nil {
		var verr *persistence.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", verr.Error(), verr.Issues)
			return
		}
		logger.Error("Create failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create documents", err.Error())
		return
	}
	s.writeSuccess(w, http.StatusCreated, result)
}

func (s *Server) writeRepositoryError(w http.ResponseWriter, logger *zap.Logger, name string, err error) {
	if errors.Is(err, persistence.ErrUnknownModel) {
		s.writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", fmt.Sprintf("Model '%s' not found", name), nil)
		return
	}
	logger.Error("Repository lookup failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}

func parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func (s *Server) writeSuccess(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, Response{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	s.writeJSON(w, status, Response{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// CORSMiddleware allows cross-origin reads and writes.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
