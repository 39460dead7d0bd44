package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned by Decode for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decode reads an audio file into a mono buffer, choosing the codec by extension.
func Decode(path string) (Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return ReadWAV(path)
	case ".flac":
		return ReadFLAC(path)
	case ".mp3":
		return ReadMP3(path)
	default:
		return Buffer{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadFLAC decodes every frame of a FLAC stream.
func ReadFLAC(path string) (Buffer, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: open flac: %w", path, err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := fullScale(int(stream.Info.BitsPerSample))

	var samples []float64
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Buffer{}, fmt.Errorf("%s: decode flac frame: %w", path, err)
		}
		n := int(frame.BlockSize)
		for i := 0; i < n; i++ {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += float64(frame.Subframes[c].Samples[i])
			}
			samples = append(samples, sum/float64(channels)/scale)
		}
	}

	buf := Buffer{Samples: samples, SampleRate: int(stream.Info.SampleRate)}
	return buf, buf.Validate()
}

// ReadMP3 decodes an MP3 file. go-mp3 always yields 16-bit little-endian
// stereo frames.
func ReadMP3(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: open mp3: %w", path, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: decode mp3: %w", path, err)
	}

	const frameBytes = 4
	frames := len(raw) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*frameBytes:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*frameBytes+2:]))
		samples[i] = (float64(l) + float64(r)) / 2 / 32768
	}

	buf := Buffer{Samples: samples, SampleRate: dec.SampleRate()}
	return buf, buf.Validate()
}
