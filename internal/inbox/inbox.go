// Package inbox feeds files dropped into a directory tree into the
// ingestion pipeline.
//
// The tree has one subdirectory per catalog kind:
//
//	DIR/content/   DIR/media/   DIR/upload/   DIR/stats/
//
// A file placed in DIR/<kind>/ is ingested as that kind and then moved to
// DIR/<kind>/Uploaded/ or, when no row was accepted, DIR/<kind>/Failed/.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/logging"
)

const (
	UploadedDir = "Uploaded"
	FailedDir   = "Failed"

	DefaultParallel = 2
	DefaultSettle   = 500 * time.Millisecond
)

// Ingester runs one batch. *ingest.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, kind catalog.Kind, fileName string, data []byte, opts ingest.Options) (*ingest.BatchResult, error)
}

// Result describes one processed file.
type Result struct {
	Kind   catalog.Kind
	Path   string // where the file was moved
	Batch  *ingest.BatchResult
	Err    error
	Failed bool
}

// Options tune a Watcher. Zero values select the defaults.
type Options struct {
	// Parallel bounds how many files are ingested at once.
	Parallel int
	// Settle is how long a file must go without writes before it is read.
	Settle time.Duration
	// DryRun ingests without saving. Files are still moved.
	DryRun bool
	// OnResult, when set, is called after each file is moved.
	OnResult func(Result)
}

// Watcher ingests files from an inbox tree.
type Watcher struct {
	root string
	ing  Ingester
	opts Options

	mu       sync.Mutex
	inFlight map[string]bool
}

// New prepares the inbox tree under root, creating missing directories.
func New(root string, ing Ingester, opts Options) (*Watcher, error) {
	if ing == nil {
		return nil, errors.New("inbox: nil ingester")
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	for _, k := range catalog.Kinds {
		for _, sub := range []string{"", UploadedDir, FailedDir} {
			if err := os.MkdirAll(filepath.Join(root, string(k), sub), 0o755); err != nil {
				return nil, fmt.Errorf("inbox: create %s: %w", k, err)
			}
		}
	}

	return &Watcher{root: root, ing: ing, opts: opts, inFlight: make(map[string]bool)}, nil
}

// KindDir is the directory watched for kind.
func (w *Watcher) KindDir(kind catalog.Kind) string {
	return filepath.Join(w.root, string(kind))
}

// Scan ingests every file already waiting in the inbox and returns when
// all of them are processed.
func (w *Watcher) Scan(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Parallel)

	for _, k := range catalog.Kinds {
		entries, err := os.ReadDir(w.KindDir(k))
		if err != nil {
			return fmt.Errorf("inbox: read %s: %w", k, err)
		}
		for _, e := range entries {
			if e.IsDir() || ignored(e.Name()) {
				continue
			}
			kind, path := k, filepath.Join(w.KindDir(k), e.Name())
			g.Go(func() error {
				w.process(gctx, kind, path)
				return nil
			})
		}
	}
	return g.Wait()
}

// Run scans the inbox once and then watches it until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer fw.Close()

	kinds := make(map[string]catalog.Kind, len(catalog.Kinds))
	for _, k := range catalog.Kinds {
		dir := w.KindDir(k)
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("inbox: watch %s: %w", dir, err)
		}
		kinds[filepath.Clean(dir)] = k
	}

	log := logging.WithFields(ctx, "component", "inbox", "dir", w.root)
	log.Info("inbox watching", "parallel", w.opts.Parallel)

	// Files present before the watch started.
	if err := w.Scan(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Parallel)

	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.opts.Settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("inbox stopping")
			_ = g.Wait()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ignored(filepath.Base(ev.Name)) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				_ = g.Wait()
				return nil
			}
			log.Warn("inbox watch error", "error", err)

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < w.opts.Settle {
					continue
				}
				delete(pending, path)

				kind, ok := kinds[filepath.Dir(path)]
				if !ok {
					continue
				}
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					continue
				}
				g.Go(func() error {
					w.process(gctx, kind, path)
					return nil
				})
			}
		}
	}
}

// process ingests one file and moves it out of the inbox. Errors are
// logged and reported through OnResult; they never stop the watcher.
func (w *Watcher) process(ctx context.Context, kind catalog.Kind, path string) {
	if !w.claim(path) {
		return
	}
	defer w.release(path)

	name := filepath.Base(path)
	log := logging.WithFields(ctx, "component", "inbox", "kind", kind, "file", name)

	res := Result{Kind: kind}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		res.Err = fmt.Errorf("read %s: %w", name, err)
	} else {
		res.Batch, res.Err = w.ing.Ingest(ctx, kind, name, data, ingest.Options{DryRun: w.opts.DryRun})
	}

	if errors.Is(res.Err, context.Canceled) {
		return
	}
	res.Failed = res.Err != nil || res.Batch.Outcome() == ingest.OutcomeCompleteFailure

	sub := UploadedDir
	if res.Failed {
		sub = FailedDir
	}
	dest, err := moveInto(path, filepath.Join(w.KindDir(kind), sub))
	if err != nil {
		log.Error("inbox move failed", "error", err)
		if res.Err == nil {
			res.Err = err
		}
	}
	res.Path = dest

	logResult(log, res)
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[path] {
		return false
	}
	w.inFlight[path] = true
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.inFlight, path)
	w.mu.Unlock()
}

func logResult(log *slog.Logger, res Result) {
	switch {
	case res.Err != nil:
		log.Error("inbox file failed", "error", res.Err, "moved_to", res.Path)
	case res.Failed:
		log.Warn("inbox file rejected",
			"batch_id", res.Batch.BatchID,
			"errors", res.Batch.ErrorCount,
			"moved_to", res.Path,
		)
	default:
		log.Info("inbox file ingested",
			"batch_id", res.Batch.BatchID,
			"success", res.Batch.SuccessCount,
			"errors", res.Batch.ErrorCount,
			"moved_to", res.Path,
		)
	}
}

// moveInto renames path into dir, adding a timestamp when the name is taken.
func moveInto(path, dir string) (string, error) {
	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stamp := time.Now().UTC().Format("20060102T150405.000")
		dest = filepath.Join(dir, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), stamp, ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s: %w", name, err)
	}
	return dest, nil
}

// ignored reports editor, lock and hidden files.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "~$") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part")
}
