package images

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vigintitres/scripta/backend/internal/storage"
	"go.uber.org/zap"
)

const objectPrefix = "blog-images"

// ErrUnsupportedImageType indicates a file outside the upload allow-list.
var ErrUnsupportedImageType = errors.New("images: unsupported image type")

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// ValidateFilename rejects files whose extension is outside the allow-list.
func ValidateFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedImageType, ext)
	}
	return nil
}

// PipelineConfig describes the dependencies of the upload pipeline.
type PipelineConfig struct {
	Blobs     storage.BlobStore
	Optimizer Optimizer
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Optimizer recompresses an image, returning replacement bytes.
type Optimizer interface {
	Optimize(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// Pipeline validates, optionally optimizes, and uploads post images.
type Pipeline struct {
	blobs     storage.BlobStore
	optimizer Optimizer
	clock     func() time.Time
	logger    *zap.Logger
}

// NewPipeline constructs the image pipeline. The optimizer is optional.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Blobs == nil {
		return nil, errors.New("images: blob store is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		blobs:     cfg.Blobs,
		optimizer: cfg.Optimizer,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Process validates the file, runs it through the optimizer when one is
// configured, and uploads the result, returning the retrievable URL.
// Optimization failure is never fatal: the original bytes are uploaded and a
// warning is logged.
func (p *Pipeline) Process(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	contentType := allowedExtensions[strings.ToLower(filepath.Ext(filename))]

	if p.optimizer != nil {
		optimized, err := p.optimizer.Optimize(ctx, filename, data)
		if err != nil {
			p.logger.Warn("image optimization failed, uploading original",
				zap.String("filename", filename), zap.Error(err))
		} else if len(optimized) > 0 {
			// The optimization endpoint returns JPEG regardless of input.
			data = optimized
			contentType = "image/jpeg"
		}
	}

	objectName := fmt.Sprintf("%s/%d-%s", objectPrefix, p.clock().UnixMilli(), sanitizeFilename(filename))
	return p.blobs.Upload(ctx, objectName, data, contentType)
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	return strings.ReplaceAll(base, " ", "-")
}
