package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Inbox watches a single directory for dropped-in documents.
// Subdirectories are not watched.
type Inbox struct {
	dir       string
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	stopOnce sync.Once
}

// NewInbox creates dir if needed and starts watching it.
func NewInbox(dir string, opts Options) (*Inbox, error) {
	opts = opts.WithDefaults()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	return &Inbox{
		dir:       abs,
		opts:      opts,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.BufferSize, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// Dir returns the absolute inbox path.
func (in *Inbox) Dir() string {
	return in.dir
}

// Run delivers debounced batches to handle until ctx is done or the
// watcher fails. handle runs on Run's goroutine, one batch at a time.
// Run stops the inbox before returning.
func (in *Inbox) Run(ctx context.Context, handle func(context.Context, []FileEvent)) error {
	defer in.Stop()

	in.logger.Info("inbox watching", slog.String("dir", in.dir))

	errc := make(chan error, 1)
	go func() { errc <- in.pump(ctx) }()

	batches := in.debouncer.Output()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			handle(ctx, batch)
		}
	}
}

// pump moves fsnotify events into the debouncer.
func (in *Inbox) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in.fsw.Events:
			if !ok {
				return nil
			}
			if fe, keep := in.translate(ev); keep {
				in.debouncer.Add(fe)
			}
		case err, ok := <-in.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				in.logger.Warn("inbox event overflow, some files may be missed", slog.String("dir", in.dir))
				continue
			}
			return fmt.Errorf("inbox watcher: %w", err)
		}
	}
}

// translate maps an fsnotify event to a FileEvent. Chmod events,
// directories and filtered paths are dropped.
func (in *Inbox) translate(ev fsnotify.Event) (FileEvent, bool) {
	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return FileEvent{}, false
	}

	path := ev.Name
	if !filepath.IsAbs(path) {
		path = filepath.Join(in.dir, path)
	}
	if in.opts.Filter != nil && !in.opts.Filter(path) {
		return FileEvent{}, false
	}
	if op != OpDelete {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return FileEvent{}, false
		}
	}
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}, true
}

// Stop closes the watcher. Safe to call multiple times.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() {
		_ = in.fsw.Close()
		in.debouncer.Stop()
	})
}
