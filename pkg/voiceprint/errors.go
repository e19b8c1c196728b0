package voiceprint

import (
	"errors"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/embedding"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
)

var (
	ErrDecode             = audio.ErrDecode
	ErrEmptySignal        = audio.ErrEmptySignal
	ErrEmbedding          = embedding.ErrEmbedding
	ErrSampleRateMismatch = embedding.ErrSampleRateMismatch
	ErrFeatureExtraction  = features.ErrFeatureExtraction

	ErrInvalidUserID = errors.New("invalid user id")
)
