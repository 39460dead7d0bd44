package models

// -- Algorithm listing --
type Algorithm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// --- Watermark provider protocol ---

// EmbedRequest asks a provider to watermark samples. Payload is base64 on
// the wire.
type EmbedRequest struct {
	Algorithm  string    `json:"algorithm"`
	SampleRate int       `json:"sample_rate"`
	Samples    []float64 `json:"samples"`
	Payload    []byte    `json:"payload,omitempty"`
}

type EmbedResponse struct {
	Algorithm string    `json:"algorithm"`
	Samples   []float64 `json:"samples"`
}

// DetectRequest asks a provider to score samples against a payload.
type DetectRequest struct {
	Algorithm  string    `json:"algorithm"`
	SampleRate int       `json:"sample_rate"`
	Samples    []float64 `json:"samples"`
	Payload    []byte    `json:"payload,omitempty"`
}

type DetectResponse struct {
	Algorithm string  `json:"algorithm"`
	Score     float64 `json:"score"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
