package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
)

const uploadField = "file"

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service voiceprint.Service
	config  *ServerConfig
	log     voiceprint.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	Backend        string
	DBPath         string
	AllowedOrigins []string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ShutdownGrace  time.Duration
}

// NewServer creates a new server instance
func NewServer(service voiceprint.Service, config *ServerConfig, log voiceprint.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 25 << 20
	}
	return &Server{
		service: service,
		config:  config,
		log:     log,
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		RequestID: requestIDFrom(r.Context()),
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voiceprint.ErrInvalidUserID),
		errors.Is(err, voiceprint.ErrDecode),
		errors.Is(err, voiceprint.ErrEmptySignal):
		return http.StatusBadRequest
	case errors.Is(err, voiceprint.ErrEmbedding):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// readUpload returns the bytes of the multipart "file" field. On failure it
// also returns the status to respond with.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("failed to parse form data: %w", err)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("%s is required", uploadField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err)
	}
	s.log.Debugf("Received %s (%d bytes)", header.Filename, len(data))
	return data, http.StatusOK, nil
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "VoiceDNA API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"enrollments": "GET /api/enrollments",
			"enroll":      "POST /enroll/{user_id}",
			"infer":       "POST /infer",
		},
	})
}

// handleHealth handles GET /health. It reports 503 when the enrollment
// backend cannot be queried.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":      "healthy",
		"time":        time.Now().Format(time.RFC3339),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"backend":     s.config.Backend,
		"enrollments": len(s.service.ListEnrollments()),
	}

	stored, err := s.service.StoredEnrollments()
	if err != nil {
		s.log.Errorf("Health check: enrollment backend unavailable: %v", err)
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		s.respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["stored"] = stored
	s.respondJSON(w, http.StatusOK, body)
}

// handleListEnrollments handles GET /api/enrollments
func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list := s.service.ListEnrollments()
	dtos := make([]EnrollmentDTO, len(list))
	for i, e := range list {
		dtos[i] = EnrollmentDTO{UserID: e.UserID, Dimension: e.Dimension}
	}
	s.respondJSON(w, http.StatusOK, ListEnrollmentsResponse{
		Enrollments: dtos,
		Count:       len(dtos),
	})
}

// handleEnroll handles POST /enroll/{user_id}
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if err := voiceprint.ValidateUserID(userID); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, status, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, status, err.Error())
		return
	}

	if err := s.service.Enroll(r.Context(), userID, data); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.log.Errorf("Enroll %q failed: %v", userID, err)
		}
		s.respondError(w, r, status, fmt.Sprintf("Failed to enroll: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, EnrollResponse{OK: true})
}

// handleInfer handles POST /infer
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	data, status, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, status, err.Error())
		return
	}

	result, err := s.service.Infer(r.Context(), data)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.log.Errorf("Infer failed: %v", err)
		}
		s.respondError(w, r, status, fmt.Sprintf("Failed to identify speaker: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, InferResponse{
		Label:      result.Label,
		Confidence: result.Confidence,
		F0Mean:     finite(result.F0Mean),
		RMS:        finite(result.RMS),
		Accepted:   result.Accepted,
	})
}
