package ingest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/watcher"
)

// AutoIngester feeds documents dropped into a directory through the
// pipeline. Only file types with a parser are picked up; everything
// else in the drop folder is left alone.
type AutoIngester struct {
	pipeline *Pipeline
	watcher  *watcher.DirWatcher
	logger   *slog.Logger
	dir      string
}

// NewAutoIngester builds a watcher-backed ingester for dir.
func NewAutoIngester(pipeline *Pipeline, dir string, logger *slog.Logger) (*AutoIngester, error) {
	if pipeline == nil {
		return nil, errors.ConfigError("nil dependency: pipeline is required", nil)
	}
	if dir == "" {
		return nil, errors.ConfigError("watch dir is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := watcher.NewDirWatcher(watcher.DefaultOptions(), logger)
	if err != nil {
		return nil, errors.ConfigError("create watcher", err)
	}

	return &AutoIngester{
		pipeline: pipeline,
		watcher:  w,
		logger:   logger,
		dir:      dir,
	}, nil
}

// Run watches the drop directory until the context is cancelled.
// Individual ingest failures are logged and skipped; a dead watcher
// is the only fatal condition.
func (a *AutoIngester) Run(ctx context.Context) error {
	go a.consume(ctx)

	err := a.watcher.Start(ctx, a.dir)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the underlying watcher.
func (a *AutoIngester) Stop() error {
	return a.watcher.Stop()
}

func (a *AutoIngester) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-a.watcher.Events():
			if !ok {
				return
			}
			for _, event := range batch {
				a.handle(ctx, event)
			}
		case err, ok := <-a.watcher.Errors():
			if !ok {
				return
			}
			a.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// handle ingests one file event. Deletions and renames are ignored:
// removing a file from the drop folder does not unpublish its chunks.
func (a *AutoIngester) handle(ctx context.Context, event watcher.FileEvent) {
	if event.Operation != watcher.OpCreate && event.Operation != watcher.OpModify {
		return
	}
	if !IngestableFile(event.Path) {
		return
	}

	data, err := os.ReadFile(event.Path)
	if err != nil {
		a.logger.Warn("cannot read dropped file",
			slog.String("path", event.Path),
			slog.String("error", err.Error()))
		return
	}

	resp, err := a.pipeline.Ingest(ctx, Request{
		Filename: filepath.Base(event.Path),
		Data:     data,
	})
	if err != nil {
		a.logger.Warn("auto-ingest failed",
			slog.String("path", event.Path),
			slog.String("error", err.Error()))
		return
	}

	a.logger.Info("auto-ingested document",
		slog.String("document_id", resp.DocumentID),
		slog.Int("chunks", resp.Chunks))
}

// IngestableFile reports whether the drop-folder file has a parser.
func IngestableFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	default:
		return false
	}
}
