package voiceprint

import (
	"context"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
)

type Service interface {
	// Enroll stores the voiceprint of audio under userID, replacing any
	// earlier enrollment.
	Enroll(ctx context.Context, userID string, audio []byte) error
	// Infer identifies the closest enrolled speaker and reports pitch and
	// energy of the utterance.
	Infer(ctx context.Context, audio []byte) (*InferenceResult, error)
	// Features decodes audio and returns its pitch and energy summary.
	Features(ctx context.Context, audio []byte) (features.Summary, error)
	ListEnrollments() []Enrollment
	// StoredEnrollments counts enrollments in the durable backend, or in
	// memory when there is none. An error means the backend is unreachable.
	StoredEnrollments() (int, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
