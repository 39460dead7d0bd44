package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"wmbench/internal/audio"
)

var (
	// ErrCorpusInsufficient is returned when fewer files exist than rows requested.
	ErrCorpusInsufficient = errors.New("corpus has too few audio files")
	// ErrCorpusExhausted is returned by Next once every file has been drawn.
	ErrCorpusExhausted = errors.New("corpus exhausted")
)

// DefaultExtensions are the audio file endings scanned for.
var DefaultExtensions = []string{".flac", ".wav", ".mp3"}

// Clip is one decoded corpus file.
type Clip struct {
	Path     string
	Buffer   audio.Buffer
	Duration float64
}

// Corpus is the set of not yet drawn audio files under a directory.
type Corpus struct {
	Dir   string
	files []string
	rng   *rand.Rand
}

// IsAudioFile reports whether name ends in one of exts, ignoring case.
func IsAudioFile(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Scan walks dir and collects every audio file. Files are kept in lexical
// order so a seeded rng draws reproducibly.
func Scan(dir string, exts []string, rng *rand.Rand) (*Corpus, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsAudioFile(d.Name(), exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return &Corpus{Dir: dir, files: files, rng: rng}, nil
}

// Len returns the number of files left to draw.
func (c *Corpus) Len() int { return len(c.files) }

// Require fails unless at least n files remain.
func (c *Corpus) Require(n int) error {
	if len(c.files) < n {
		return fmt.Errorf("%w: there are %d audio files in %s, but %d are needed",
			ErrCorpusInsufficient, len(c.files), c.Dir, n)
	}
	return nil
}

// Next removes a random file from the corpus and returns its path.
func (c *Corpus) Next() (string, error) {
	if len(c.files) == 0 {
		return "", ErrCorpusExhausted
	}
	i := c.rng.Intn(len(c.files))
	path := c.files[i]
	c.files[i] = c.files[len(c.files)-1]
	c.files = c.files[:len(c.files)-1]
	return path, nil
}

// Load decodes path into a Clip.
func Load(path string) (Clip, error) {
	buf, err := audio.Decode(path)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Path: path, Buffer: buf, Duration: buf.Duration()}, nil
}
