package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"filepath", "len_seconds", "a", "combined_a"}

func sampleRow(path string) Row {
	return Row{
		Path:     path,
		Duration: 1.5,
		Cells: []Cell{
			{Field: "a", Score: 0.75},
			{Field: "combined_a", Err: errors.New("embed failed")},
		},
	}
}

func TestRow_Record(t *testing.T) {
	assert.Equal(t, []string{"x.wav", "1.5", "0.75", "NA"}, sampleRow("x.wav").Record(DefaultMissing))

	zero := Row{Path: "z", Duration: 2, Cells: []Cell{{Score: 0}, {Score: 1}}}
	assert.Equal(t, []string{"z", "2", "0", "1"}, zero.Record("NA"), "0 and 1 are real scores")
}

func TestCSVSink_WritesHeaderOnceAndAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")

	s := NewCSVSink(path, "")
	require.NoError(t, s.Open(ctx, header))
	require.NoError(t, s.Write(ctx, sampleRow("one.wav")))
	require.NoError(t, s.Close())

	s = NewCSVSink(path, "")
	require.NoError(t, s.Open(ctx, header))
	require.NoError(t, s.Write(ctx, sampleRow("two.wav")))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"filepath,len_seconds,a,combined_a\n"+
			"one.wav,1.5,0.75,NA\n"+
			"two.wav,1.5,0.75,NA\n",
		string(data))
}

// TestCSVSink_RowVisibleBeforeClose verifies each row is on disk as soon as
// Write returns.
func TestCSVSink_RowVisibleBeforeClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")
	s := NewCSVSink(path, "")
	require.NoError(t, s.Open(ctx, header))
	defer s.Close()

	require.NoError(t, s.Write(ctx, sampleRow("one.wav")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestCSVSink_HeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("filepath,len_seconds,other\n"), 0o644))

	err := NewCSVSink(path, "").Open(context.Background(), header)
	assert.ErrorContains(t, err, "has header")
}

func TestCSVSink_WriteBeforeOpen(t *testing.T) {
	err := NewCSVSink("x.csv", "").Write(context.Background(), sampleRow("a"))
	assert.Error(t, err)
}

func TestCSVSink_QuotesPaths(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")
	s := NewCSVSink(path, "")
	require.NoError(t, s.Open(ctx, header))
	require.NoError(t, s.Write(ctx, sampleRow("a,b.wav")))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a,b.wav",1.5`)
}

type execCall struct {
	sql  string
	args []interface{}
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql, args})
	return pgconn.CommandTag("INSERT 0 1"), f.err
}

func TestPostgresSink_OpenAndWrite(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	runID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s := NewPostgresSink(db, runID)
	s.Now = func() time.Time { return started }
	require.NoError(t, s.Open(ctx, header))
	require.NoError(t, s.Write(ctx, sampleRow("one.wav")))
	require.NoError(t, s.Close())

	require.Len(t, db.calls, 3)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS evaluation_runs")
	assert.Equal(t, []interface{}{runID.String(), started, header}, db.calls[1].args)

	insert := db.calls[2]
	assert.Contains(t, insert.sql, "($1::uuid, $2, $3, $4, $5, $6, $7), ($8::uuid, $9, $10, $11, $12, $13, $14)")
	assert.Equal(t, []interface{}{
		runID.String(), "one.wav", 1.5, 0, "a", 0.75, nil,
		runID.String(), "one.wav", 1.5, 1, "combined_a", nil, "embed failed",
	}, insert.args)
}

func TestPostgresSink_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	s := NewPostgresSink(&fakeDB{err: boom}, uuid.New())

	err := s.Write(context.Background(), sampleRow("one.wav"))
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "one.wav")

	assert.NoError(t, s.Write(context.Background(), Row{Path: "empty"}))
}

type failingSink struct{ closed bool }

func (f *failingSink) Open(context.Context, []string) error { return errors.New("open") }
func (f *failingSink) Write(context.Context, Row) error     { return errors.New("write") }
func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	bad := &failingSink{}

	m := Multi{NewPostgresSink(db, uuid.New()), bad}
	assert.ErrorContains(t, m.Open(ctx, header), "open")
	assert.ErrorContains(t, m.Write(ctx, sampleRow("a")), "write")
	assert.NoError(t, m.Close())
	assert.True(t, bad.closed)
}
