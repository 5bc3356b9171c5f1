package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/toolquery/observe"
)

// DefaultReloadDebounce coalesces bursts of file events into one reload.
const DefaultReloadDebounce = 200 * time.Millisecond

// Watch reloads the vocabulary from path whenever the file changes, until
// ctx is done. The parent directory is watched so editors that replace the
// file atomically are seen. A reload that fails validation is logged and the
// current vocabulary stays in place.
//
// Watch blocks; run it in its own goroutine. It returns nil when ctx ends.
func (p *Parser) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("vocabulary watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("vocabulary watcher add %s: %w", path, err)
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.warn(ctx, "vocabulary watcher error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !samePath(event.Name, path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DefaultReloadDebounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(DefaultReloadDebounce)
		case <-timerChan(timer):
			timer = nil
			if err := p.Reload(path); err != nil {
				p.warn(ctx, "vocabulary reload failed", err)
				continue
			}
			if p.logger != nil {
				p.logger.Info(ctx, "vocabulary reloaded", observe.Field{Key: "path", Value: path})
			}
		}
	}
}

// Reload loads path and swaps it in.
func (p *Parser) Reload(path string) error {
	v, err := LoadVocabulary(path)
	if err != nil {
		return err
	}
	return p.SetVocabulary(v)
}

func (p *Parser) warn(ctx context.Context, msg string, err error) {
	if p.logger == nil || err == nil {
		return
	}
	p.logger.Warn(ctx, msg, observe.Field{Key: "error", Value: err.Error()})
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
