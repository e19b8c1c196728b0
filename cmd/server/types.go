package main

import "math"

// EnrollResponse is the response for POST /enroll/{user_id}
type EnrollResponse struct {
	OK bool `json:"ok"`
}

// InferResponse is the response for POST /infer. Pitch is null when no
// frame of the utterance was voiced.
type InferResponse struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	F0Mean     *float64 `json:"f0_mean"`
	RMS        *float64 `json:"rms"`
	Accepted   bool     `json:"accepted"`
}

// EnrollmentDTO represents an enrolled user in API responses
type EnrollmentDTO struct {
	UserID    string `json:"user_id"`
	Dimension int    `json:"dimension"`
}

// ListEnrollmentsResponse is the response for GET /api/enrollments
type ListEnrollmentsResponse struct {
	Enrollments []EnrollmentDTO `json:"enrollments"`
	Count       int             `json:"count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// finite maps NaN and infinities to nil so they encode as JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
