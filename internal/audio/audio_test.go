package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Validate(t *testing.T) {
	assert.NoError(t, Buffer{Samples: []float64{0}, SampleRate: 16000}.Validate())
	assert.True(t, errors.Is(Buffer{SampleRate: 16000}.Validate(), ErrInvalidBuffer))
	assert.True(t, errors.Is(Buffer{Samples: []float64{0}}.Validate(), ErrInvalidBuffer))
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	orig := Buffer{Samples: []float64{0.1, 0.2}, SampleRate: 8000}
	c := orig.Clone()
	c.Samples[0] = 0.9
	assert.Equal(t, 0.1, orig.Samples[0])
	assert.Equal(t, 8000, c.SampleRate)
}

func TestBuffer_Duration(t *testing.T) {
	b := Buffer{Samples: make([]float64, 24000), SampleRate: 16000}
	assert.InDelta(t, 1.5, b.Duration(), 1e-12)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float64{0.5, -0.25}, downmix([]float64{1, 0, -0.5, 0}, 2))
}

// TestWAV_RoundTrip verifies values on the 16-bit grid survive encode/decode exactly.
func TestWAV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := Buffer{Samples: []float64{0, 0.5, -0.5, 0.25, -1}, SampleRate: 16000}

	require.NoError(t, WriteWAV(path, in, 16))
	out, err := ReadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, in.SampleRate, out.SampleRate)
	assert.Equal(t, in.Samples, out.Samples)
}

func TestWAV_ClipsOutOfRange(t *testing.T) {
	got := floatsToInts([]float64{2, -2}, 16)
	assert.Equal(t, []int{32767, -32768}, got)
}

func TestWriteWAV_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	assert.Error(t, WriteWAV(path, Buffer{SampleRate: 16000}, 16))
	assert.Error(t, WriteWAV(path, Buffer{Samples: []float64{0}, SampleRate: 16000}, 12))
}

func TestDecode_UnsupportedExtension(t *testing.T) {
	_, err := Decode("clip.ogg")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecode_DispatchesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CLIP.WAV")
	require.NoError(t, WriteWAV(path, Buffer{Samples: []float64{0.5}, SampleRate: 22050}, 16))

	buf, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 22050, buf.SampleRate)
	assert.Equal(t, []float64{0.5}, buf.Samples)
}

// writeFLAC encodes 16-bit stereo frames of blockSize samples each.
func writeFLAC(t *testing.T, path string, rate uint32, left, right []int32, blockSize int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)

	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    rate,
		NChannels:     2,
		BitsPerSample: 16,
	}
	enc, err := flac.NewEncoder(f, info)
	require.NoError(t, err)

	for off := 0; off < len(left); off += blockSize {
		end := off + blockSize
		if end > len(left) {
			end = len(left)
		}
		n := end - off
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        rate,
				Channels:          frame.ChannelsLR,
				BitsPerSample:     16,
			},
			Subframes: []*frame.Subframe{
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: left[off:end], NSamples: n},
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: right[off:end], NSamples: n},
			},
		}
		require.NoError(t, enc.WriteFrame(fr))
	}
	require.NoError(t, enc.Close())
}

// TestReadFLAC_DownmixAndScale verifies stereo FLAC frames are averaged into
// one channel and scaled by the stream bit depth.
func TestReadFLAC_DownmixAndScale(t *testing.T) {
	const n = 40
	left := make([]int32, n)
	right := make([]int32, n)
	for i := range left {
		left[i] = int32(i * 800)
		right[i] = int32(-i * 200)
	}
	left[n-1] = 32767
	right[n-1] = 32767

	path := filepath.Join(t.TempDir(), "clip.flac")
	writeFLAC(t, path, 16000, left, right, 16)

	buf, err := ReadFLAC(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, buf.SampleRate)
	require.Len(t, buf.Samples, n, "samples from every frame, including the short last one")
	for i := range left {
		want := (float64(left[i]) + float64(right[i])) / 2 / 32768
		assert.InDelta(t, want, buf.Samples[i], 1e-12, "sample %d", i)
	}
	assert.InDelta(t, 32767.0/32768, buf.Samples[n-1], 1e-12)
}

func TestReadFLAC_NotFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := ReadFLAC(path)
	assert.Error(t, err)
}

// TestReadMP3_Fixture decodes 24 frames of 22.05kHz mono MPEG-2 speech.
func TestReadMP3_Fixture(t *testing.T) {
	buf, err := ReadMP3(filepath.Join("testdata", "speech.mp3"))
	require.NoError(t, err)

	assert.Equal(t, 22050, buf.SampleRate)
	assert.NotEmpty(t, buf.Samples)
	assert.LessOrEqual(t, len(buf.Samples), 24*1152)
	var peak float64
	for _, s := range buf.Samples {
		peak = math.Max(peak, math.Abs(s))
	}
	assert.LessOrEqual(t, peak, 1.0)
}

func TestReadMP3_NotMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := ReadMP3(path)
	assert.Error(t, err)
}

func TestDecode_DispatchesFLACAndMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CLIP.Flac")
	writeFLAC(t, path, 16000, []int32{16384, 0}, []int32{16384, 0}, 16)

	buf, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0}, buf.Samples)

	buf, err = Decode(filepath.Join("testdata", "speech.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 22050, buf.SampleRate)
}
