package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultBitDepth is used for intermediate artifacts when none is configured.
const DefaultBitDepth = 16

const wavFormatPCM = 1

// ReadWAV decodes an integer PCM WAV file into a mono buffer.
func ReadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return Buffer{}, fmt.Errorf("%s: unsupported wav format %d", path, dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: decode wav: %w", path, err)
	}

	depth := pcm.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	channels := int(dec.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}

	buf := Buffer{
		Samples:    downmix(intsToFloats(pcm.Data, depth), channels),
		SampleRate: int(dec.SampleRate),
	}
	return buf, buf.Validate()
}

// WriteWAV encodes buf as a mono integer PCM WAV file at path, replacing any
// existing file.
func WriteWAV(path string, buf Buffer, bitDepth int) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, buf.SampleRate, bitDepth, 1, wavFormatPCM)
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           floatsToInts(buf.Samples, bitDepth),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

func fullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

func intsToFloats(data []int, bitDepth int) []float64 {
	scale := fullScale(bitDepth)
	out := make([]float64, len(data))
	for i, v := range data {
		if bitDepth == 8 {
			// 8-bit wav is unsigned
			v -= 128
		}
		out[i] = float64(v) / scale
	}
	return out
}

func floatsToInts(samples []float64, bitDepth int) []int {
	scale := fullScale(bitDepth)
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * scale)
		if v > scale-1 {
			v = scale - 1
		} else if v < -scale {
			v = -scale
		}
		out[i] = int(v)
		if bitDepth == 8 {
			out[i] += 128
		}
	}
	return out
}
