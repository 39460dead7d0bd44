package conversion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Kinds(t *testing.T) {
	assert.Equal(t, []string{"command", "identity", "remote"}, Kinds())

	c, err := New(Spec{Kind: IdentityKind})
	require.NoError(t, err)
	out, err := c.Convert(context.Background(), "a.wav", "b.wav")
	require.NoError(t, err)
	assert.Equal(t, "a.wav", out)

	_, err = New(Spec{Kind: "nope"})
	assert.ErrorContains(t, err, "not found")

	_, err = New(Spec{Kind: CommandKind})
	assert.ErrorContains(t, err, "args is required")

	_, err = New(Spec{Kind: RemoteKind, Params: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "url is required")
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestCommand_WritesOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))

	c := &Command{Args: []string{"sh", "-c", `cat "$0" > "$1"`, "{source}", "{output}"}, WorkDir: dir}
	out, err := c.Convert(context.Background(), src, "ref.wav")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestCommand_StdoutPath(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))

	c := &Command{Args: []string{"sh", "-c", `echo converting; echo "$0"`, "{source}"}, WorkDir: dir, StdoutPath: true}
	out, err := c.Convert(context.Background(), src, "ref.wav")
	require.NoError(t, err)
	assert.Equal(t, src, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "placeholder output must be removed")
}

func TestCommand_FailureCleansUp(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	c := &Command{Args: []string{"sh", "-c", "echo model exploded >&2; exit 3"}, WorkDir: dir}
	_, err := c.Convert(context.Background(), "src.wav", "ref.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommand_EmptyOutputIsError(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	c := &Command{Args: []string{"true"}, WorkDir: dir}
	_, err := c.Convert(context.Background(), "src.wav", "ref.wav")
	assert.ErrorContains(t, err, "empty")
}

func TestRemote_Convert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	ref := filepath.Join(dir, "ref.wav")
	require.NoError(t, os.WriteFile(src, []byte("source-bytes"), 0o644))
	require.NoError(t, os.WriteFile(ref, []byte("reference-bytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert", r.URL.Path)
		f, _, err := r.FormFile("source")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		_, _, err = r.FormFile("reference")
		assert.NoError(t, err)
		_, _ = io.Copy(w, f)
	}))
	defer srv.Close()

	c, err := New(Spec{Kind: RemoteKind, Params: json.RawMessage(`{"url":"` + srv.URL + `","work_dir":"` + dir + `"}`)})
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), src, ref)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "source-bytes", string(data))
}

func TestRemote_ErrorStatus(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Remote{URL: srv.URL, WorkDir: dir, c: srv.Client()}
	_, err := c.Convert(context.Background(), src, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cuda out of memory")
}
