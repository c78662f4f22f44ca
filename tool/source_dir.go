package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manifest file suffixes recognised by DirectorySource.
var manifestSuffixes = []string{"_tool.yaml", "_tool.yml"}

// DirectorySource loads every *_tool.yaml manifest in Dir. Files are read
// in lexical order. A missing directory yields no units unless Required.
type DirectorySource struct {
	Dir      string
	Required bool
}

// NewDirectorySource returns a source over dir.
func NewDirectorySource(dir string, required bool) *DirectorySource {
	return &DirectorySource{Dir: dir, Required: required}
}

// Name implements Source.
func (s *DirectorySource) Name() string {
	return "dir:" + s.Dir
}

// Units implements Source.
func (s *DirectorySource) Units(ctx context.Context) ([]Unit, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) && !s.Required {
			return nil, nil
		}
		return nil, fmt.Errorf("read tools directory: %w", err)
	}

	units := make([]Unit, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		toolName, ok := manifestToolName(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		desc, err := loadManifestFile(path, toolName)
		units = append(units, Unit{Ref: path, Descriptor: desc, Err: err})
	}
	return units, nil
}

// manifestToolName strips the manifest suffix from a file name.
func manifestToolName(fileName string) (string, bool) {
	for _, suffix := range manifestSuffixes {
		if strings.HasSuffix(fileName, suffix) {
			name := strings.TrimSuffix(fileName, suffix)
			if name == "" || strings.HasPrefix(name, ".") {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}

func loadManifestFile(path, toolName string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return Descriptor{}, err
	}
	return manifest.Descriptor(toolName)
}
