// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fraudgraph

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/fraudgraph/pkg/logging"
)

// DefaultDebounceInterval is the rebuild debounce used when the
// configured interval is zero.
const DefaultDebounceInterval = 2 * time.Second

// DatasetWatcher watches a dataset directory for CSV changes and triggers
// a full pipeline rebuild after a quiet period.
//
// Dataset regeneration rewrites all four CSV files in quick succession;
// the debounce collapses that burst into a single rebuild once writes
// settle. A rebuild that fails leaves the previously published state in
// place, so a half-written dataset only costs a logged error.
type DatasetWatcher struct {
	svc      *Service
	dir      string
	debounce time.Duration
	log      *logging.Logger

	watcher *fsnotify.Watcher
	events  chan struct{}
	done    chan struct{}
}

// NewDatasetWatcher creates a watcher over the given dataset directory.
//
// Inputs:
//
//   - svc: The service to rebuild on changes. Must not be nil.
//   - dir: Dataset directory to watch. Must exist.
//   - debounce: Quiet period before a rebuild. Zero uses
//     DefaultDebounceInterval.
//   - log: Logger. Must not be nil.
//
// Outputs:
//
//   - *DatasetWatcher: The watcher, not yet started.
//   - error: Directory missing or fsnotify setup failure.
func NewDatasetWatcher(svc *Service, dir string, debounce time.Duration, log *logging.Logger) (*DatasetWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &DatasetWatcher{
		svc:      svc,
		dir:      dir,
		debounce: debounce,
		log:      log,
		watcher:  fw,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the event and debounce loops. They run until ctx is
// cancelled or Stop is called.
func (w *DatasetWatcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)
	w.log.Info("dataset watcher started", "dir", w.dir, "debounce", w.debounce)
}

// Stop closes the underlying watcher and terminates both loops. Safe to
// call more than once.
func (w *DatasetWatcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
		w.watcher.Close()
	}
}

func (w *DatasetWatcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("dataset file changed",
				"file", filepath.Base(event.Name), "op", event.Op.String())
			// Coalesce: a pending signal already covers this event.
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("dataset watcher error", "error", err)
		}
	}
}

func (w *DatasetWatcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.rebuild(ctx)
		}
	}
}

func (w *DatasetWatcher) rebuild(ctx context.Context) {
	w.log.Info("dataset changed, rebuilding", "dir", w.dir)
	if _, err := w.svc.LoadAndBuild(ctx, w.dir); err != nil {
		w.log.Error("rebuild after dataset change failed", "error", err)
	}
}

// relevant reports whether an fsnotify event concerns one of the dataset
// CSV files and is a content-changing operation.
func (w *DatasetWatcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasSuffix(event.Name, ".csv")
}
