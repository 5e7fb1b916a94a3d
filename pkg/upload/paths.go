package upload

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	bucketLayout = "200601"
	stampLayout  = "02150405"
)

// Generator derives storage locations for uploaded attachments.
// It never touches the filesystem.
type Generator struct {
	baseDir string
	random  func() string
}

// NewGenerator builds a generator rooted at baseDir.
func NewGenerator(baseDir string) *Generator {
	return &Generator{
		baseDir: filepath.Clean(strings.TrimSpace(baseDir)),
		random:  randomSuffix,
	}
}

// StorageRoot returns the monthly bucket directory for now, e.g. <base>/202610.
func (g *Generator) StorageRoot(now time.Time) string {
	return filepath.Join(g.baseDir, now.UTC().Format(bucketLayout))
}

// UniqueFilename keeps everything before the last dot, appends a DDHHMMSS stamp
// and a random component, then reattaches the original extension verbatim.
func (g *Generator) UniqueFilename(original string, now time.Time) string {
	name := filepath.Base(strings.TrimSpace(original))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	stem, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		stem, ext = name[:idx], name[idx+1:]
	}
	if stem == "" {
		stem = "file"
	}
	generated := stem + "_" + now.UTC().Format(stampLayout) + "_" + g.random()
	if ext != "" {
		generated += "." + ext
	}
	return generated
}

// Path joins StorageRoot and UniqueFilename.
func (g *Generator) Path(original string, now time.Time) (dir, name string) {
	return g.StorageRoot(now), g.UniqueFilename(original, now)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
