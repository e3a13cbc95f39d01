package classifier

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// FileProvider loads a Centroid model from disk on first use and holds it for
// the life of the process. While the file does not exist every call returns
// ErrNotTrained and loading is retried on the next call.
type FileProvider struct {
	path string

	mu     sync.Mutex
	loaded Classifier
}

// NewFileProvider returns a provider for the model file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the model file location.
func (p *FileProvider) Path() string { return p.path }

// Classifier implements Provider.
func (p *FileProvider) Classifier(_ context.Context) (Classifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded != nil {
		return p.loaded, nil
	}

	m, err := Load(p.path)
	if err != nil {
		if !errors.Is(err, ErrNotTrained) {
			zap.L().Error("classifier: model load failed", zap.String("path", p.path), zap.Error(err))
		}
		return nil, err
	}

	zap.L().Info("classifier: model loaded",
		zap.String("path", p.path),
		zap.Any("classes", m.Classes()),
	)
	p.loaded = m
	return m, nil
}
