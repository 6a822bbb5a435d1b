package instructions

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	PostGeneration   = "PostGenerationInstructions.txt"
	ScriptGeneration = "ScriptGenerationInstructions.txt"
	ContentAnalyzer  = "ContentAnalyzerInstructions.txt"
)

//go:embed defaults/*.txt
var defaults embed.FS

// Loader resolves stage instructions from a directory, falling back to the
// built-in text when a file is missing.
type Loader struct {
	Dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

func (l *Loader) Load(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", errors.New("instructions: name is required")
	}

	if l != nil && l.Dir != "" {
		b, err := os.ReadFile(filepath.Join(l.Dir, name))
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("instructions: read %s: %w", name, err)
		}
	}

	b, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		// Matches a missing file with no default: empty instructions.
		return "", nil
	}
	return string(b), nil
}
