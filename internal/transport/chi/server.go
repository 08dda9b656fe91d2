// Package chi exposes the dataset, record and search use cases over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/domain"
	datasetuc "github.com/kailas-cloud/annosearch/internal/usecase/dataset"
	healthuc "github.com/kailas-cloud/annosearch/internal/usecase/health"
	recorduc "github.com/kailas-cloud/annosearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/annosearch/internal/usecase/search"
	"github.com/kailas-cloud/annosearch/internal/version"
)

// ErrorCode is the machine-readable error kind of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnprocessable    ErrorCode = "unprocessable_entity"
	CodeConflict         ErrorCode = "conflict"
	CodeIndexNotFound    ErrorCode = "index_not_found"
	CodeSearchEngine     ErrorCode = "search_engine_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	datasets      *datasetuc.Service
	records       *recorduc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	datasets *datasetuc.Service,
	records *recorduc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		datasets: datasets,
		records:  records,
		search:   search,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrValidation, http.StatusUnprocessableEntity, CodeValidationFailed),
		sentinelHandler(domain.ErrUnprocessable, http.StatusUnprocessableEntity, CodeUnprocessable),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrConfiguration, http.StatusUnprocessableEntity, CodeUnprocessable),
		s.indexNotFoundHandler,
		sentinelHandler(domain.ErrSearchEngine, http.StatusBadGateway, CodeSearchEngine),
	}
	return s
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// clientMessage returns the detail attached to a domain error, or the
// sentinel's text when there is none.
func clientMessage(err error, sentinel error) string {
	if d := domain.Detail(err); d != "" {
		return d
	}
	return sentinel.Error()
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, clientMessage(err, sentinel))
		return true
	}
}

// indexNotFoundHandler reports a missing index as a server fault: a published
// dataset always has one.
func (s *Server) indexNotFoundHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrIndexNotFound) {
		return false
	}
	s.logger.Error("search index missing", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeIndexNotFound, domain.ErrIndexNotFound.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
