package bulk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch ingests corpus files as they appear in dir, running each new or
// rewritten .json file through the same filter chain as a bulk run. Blocks
// until ctx is canceled.
func (p *Processor) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	p.log.Info("watching corpus directory", zap.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			p.ingestFile(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (p *Processor) ingestFile(ctx context.Context, path string) {
	docs, err := loadDocuments(path)
	if err != nil {
		p.log.Warn("skipping undecodable corpus file", zap.String("path", path), zap.Error(err))
		return
	}
	stats, err := p.ProcessDocuments(ctx, docs)
	if err != nil {
		p.log.Warn("ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	p.log.Info("ingested corpus file",
		zap.String("path", path),
		zap.Int("documents", stats.Processed),
		zap.Int("theorems_added", stats.TheoremsAdded))
}
