package artifact

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/glyph.codec/internal/fsutil"
)

// Extension is the conventional artifact file extension.
const Extension = ".agc"

// maxFileSize bounds artifact reads.
const maxFileSize = 64 << 20

// Marshal encodes r as indented JSON.
func Marshal(r *Result) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Unmarshal decodes an artifact and checks its version.
func Unmarshal(b []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	if r.Version != FormatVersion {
		return nil, fmt.Errorf("artifact: unsupported version %q", r.Version)
	}
	return &r, nil
}

// Save writes r to path, creating parent directories as needed.
func Save(fsys fsutil.FileSystem, path string, r *Result) error {
	b, err := Marshal(r)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := fsys.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// Load reads an artifact from path.
func Load(fsys fsutil.FileSystem, path string) (*Result, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact %s: %w", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("artifact %s too large: %d bytes (max %d)", path, info.Size(), maxFileSize)
	}
	b, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	r, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return r, nil
}

// PathFor returns the artifact path for an input file: the input's base
// name with its extension replaced, placed in dir.
func PathFor(dir, input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+Extension)
}
