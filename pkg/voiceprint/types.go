package voiceprint

// InferenceResult is the outcome of one Infer call.
type InferenceResult struct {
	Label      string  // best matching user ID, or "S?" when nothing is enrolled
	Confidence float64 // cosine similarity in [-1, 1]
	F0Mean     float64 // Hz; NaN when no frame was voiced
	RMS        float64
	Accepted   bool // Confidence above the configured threshold
}

// Enrollment is a listed user. Vectors are not exposed.
type Enrollment struct {
	UserID    string
	Dimension int
}
