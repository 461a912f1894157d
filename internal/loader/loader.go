// Package loader reads the documents a run analyzes from a folder on disk.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/internal/textproc"
)

// MaxFileBytes caps a single document. Larger files are skipped with a
// warning rather than failing the run.
const MaxFileBytes = 20 << 20

var extensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Loader walks a folder and produces documents for analysis.
type Loader struct {
	MaxBytes int64
}

func New() *Loader {
	return &Loader{MaxBytes: MaxFileBytes}
}

// LoadFolder reads every supported file directly under dir and its
// subdirectories. Empty and oversize files are skipped, not fatal; an empty
// result set is an error because a run over nothing is a caller mistake.
func (l *Loader) LoadFolder(dir string) ([]model.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("%s is not a directory", dir)
	}

	var docs []model.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		doc, ok, err := l.loadFile(dir, path)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "walk %s", dir)
	}
	if len(docs) == 0 {
		return nil, eris.Errorf("no supported documents found in %s", dir)
	}

	zap.L().Info("documents loaded",
		zap.String("folder", dir),
		zap.Int("count", len(docs)))
	return docs, nil
}

func (l *Loader) loadFile(root, path string) (model.Document, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Document{}, false, eris.Wrapf(err, "stat %s", path)
	}
	if info.Size() > l.MaxBytes {
		zap.L().Warn("skipping oversize file",
			zap.String("path", path),
			zap.Int64("size_bytes", info.Size()))
		return model.Document{}, false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, false, eris.Wrapf(err, "read %s", path)
	}
	content := textproc.CleanText(string(raw))
	if strings.TrimSpace(content) == "" {
		zap.L().Warn("skipping empty file", zap.String("path", path))
		return model.Document{}, false, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return model.Document{
		ID:        uuid.NewString(),
		Name:      rel,
		Path:      path,
		SizeBytes: info.Size(),
		Content:   content,
		Metadata: map[string]string{
			"extension": filepath.Ext(path),
			"size":      fmt.Sprintf("%d", info.Size()),
		},
	}, true, nil
}
