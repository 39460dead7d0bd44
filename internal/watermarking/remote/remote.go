package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"wmbench/internal/models"
	"wmbench/internal/watermarking"
)

const Kind = "remote"

const (
	defaultPayloadBytes = 2
	defaultTimeout      = 300
)

// Remote forwards embed and detect calls to a watermark service speaking the
// /api/v1/watermarks protocol, such as a Python AudioSeal or WavMark server
// or cmd/wmbench-api.
type Remote struct {
	Label          string `json:"-"`
	URL            string `json:"url"`
	Algorithm      string `json:"algorithm"`
	PayloadBytes   int    `json:"payload_bytes"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	c *http.Client
}

func init() {
	watermarking.Register(Kind, watermarking.ParserFunc(Parse))
}

// Parse builds a Remote from JSON params. url is required; algorithm
// defaults to the instance name.
func Parse(name string, params json.RawMessage) (watermarking.Watermarker, error) {
	r := &Remote{
		Label:          name,
		Algorithm:      name,
		PayloadBytes:   defaultPayloadBytes,
		TimeoutSeconds: defaultTimeout,
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, r); err != nil {
			return nil, err
		}
	}
	if r.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if r.PayloadBytes < 0 {
		return nil, fmt.Errorf("payload_bytes must not be negative")
	}
	r.URL = strings.TrimRight(r.URL, "/")
	r.c = &http.Client{Timeout: time.Duration(r.TimeoutSeconds) * time.Second}
	return r, nil
}

// New returns a Remote using the given client, for callers that manage
// their own transport.
func New(name, url, algorithm string, payloadBytes int, c *http.Client) *Remote {
	return &Remote{
		Label:        name,
		URL:          strings.TrimRight(url, "/"),
		Algorithm:    algorithm,
		PayloadBytes: payloadBytes,
		c:            c,
	}
}

func (r *Remote) Name() string { return r.Label }

func (r *Remote) Description() string {
	return fmt.Sprintf("Remote watermark '%s' served at %s", r.Algorithm, r.URL)
}

// NewPayload returns PayloadBytes random bytes. A service that generates
// its own message can be configured with payload_bytes: 0.
func (r *Remote) NewPayload(rng *rand.Rand) []byte {
	if r.PayloadBytes == 0 {
		return nil
	}
	p := make([]byte, r.PayloadBytes)
	rng.Read(p)
	return p
}

func (r *Remote) Embed(ctx context.Context, samples []float64, sampleRate int, payload []byte) ([]float64, error) {
	var out models.EmbedResponse
	err := r.post(ctx, "/api/v1/watermarks/embed", models.EmbedRequest{
		Algorithm:  r.Algorithm,
		SampleRate: sampleRate,
		Samples:    samples,
		Payload:    payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Samples, nil
}

func (r *Remote) Detect(ctx context.Context, samples []float64, sampleRate int, payload []byte) (float64, error) {
	var out models.DetectResponse
	err := r.post(ctx, "/api/v1/watermarks/detect", models.DetectRequest{
		Algorithm:  r.Algorithm,
		SampleRate: sampleRate,
		Samples:    samples,
		Payload:    payload,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Score, nil
}

func (r *Remote) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s", r.Algorithm, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", r.Algorithm, err)
	}
	return nil
}
