// Package filler plays short pre-recorded clips right after the caller stops
// speaking, masking the reasoning and synthesis round-trip latency.
package filler

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Library holds pre-recorded filler clips keyed by language. Clips are raw
// PCM 48kHz s16le mono files laid out as <dir>/<language>/<name>.pcm.
type Library struct {
	defaultLang string
	clips       map[string][][]byte
}

// LoadLibrary scans dir for per-language clip sets. A missing or empty
// directory yields an empty library, which simply plays nothing.
func LoadLibrary(dir, defaultLang string) (*Library, error) {
	lib := &Library{
		defaultLang: strings.ToLower(defaultLang),
		clips:       make(map[string][][]byte),
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("filler: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lang := strings.ToLower(e.Name())
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".pcm") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name(), f.Name()))
			if err != nil || len(data) == 0 {
				continue
			}
			lib.clips[lang] = append(lib.clips[lang], data)
		}
	}
	return lib, nil
}

// Pick returns a random clip for the language, falling back to the default
// language's set when the requested one has none.
func (l *Library) Pick(lang string) ([]byte, bool) {
	set := l.clips[strings.ToLower(lang)]
	if len(set) == 0 {
		set = l.clips[l.defaultLang]
	}
	if len(set) == 0 {
		return nil, false
	}
	return set[rand.Intn(len(set))], true
}

// Languages lists the languages with at least one clip.
func (l *Library) Languages() []string {
	out := make([]string, 0, len(l.clips))
	for lang := range l.clips {
		out = append(out, lang)
	}
	return out
}
