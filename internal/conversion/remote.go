package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const RemoteKind = "remote"

// Remote posts the source and reference files to a conversion service and
// saves the wav it answers with.
type Remote struct {
	URL            string `json:"url"`
	WorkDir        string `json:"work_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	c *http.Client
}

func parseRemote(params json.RawMessage) (Converter, error) {
	r := &Remote{TimeoutSeconds: 600}
	if len(params) > 0 {
		if err := json.Unmarshal(params, r); err != nil {
			return nil, err
		}
	}
	if r.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	r.URL = strings.TrimRight(r.URL, "/")
	r.c = &http.Client{Timeout: time.Duration(r.TimeoutSeconds) * time.Second}
	return r, nil
}

func (r *Remote) Name() string { return r.URL }

func addFile(w *multipart.Writer, field, path string) error {
	fw, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = io.Copy(fw, fd)
	return err
}

func (r *Remote) Convert(ctx context.Context, source, reference string) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if err := addFile(w, "source", source); err != nil {
		return "", err
	}
	if err := addFile(w, "reference", reference); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL+"/convert", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("convert %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	out, err := os.CreateTemp(r.WorkDir, "converted-*.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("convert download: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
