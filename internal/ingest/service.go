package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/store"
)

// DefaultMaxFileSize bounds batch input when no size is configured (10MB).
const DefaultMaxFileSize int64 = 10 << 20

// ErrUnknownKind is returned for a kind with no registered pipeline.
var ErrUnknownKind = errors.New("unknown catalog kind")

// Config configures a Service. Zero values select the defaults.
type Config struct {
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	LinkMaps      *LinkMaps
	// Ledger receives every rejected row. Nil disables the ledger.
	Ledger *ledger.Service
}

// Options tune a single ingestion call.
type Options struct {
	// DryRun parses, validates and checks duplicates without saving,
	// linking or writing the ledger.
	DryRun bool
}

// Service runs ingestion batches against a store set.
type Service struct {
	runners     map[catalog.Kind]runner
	limiter     *Limiter
	ledger      *ledger.Service
	maxFileSize int64
	now         func() time.Time
}

// NewService builds the pipelines of every catalog kind over stores.
func NewService(stores store.Set, cfg Config) *Service {
	maps := DefaultLinkMaps()
	if cfg.LinkMaps != nil {
		maps = *cfg.LinkMaps
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Service{
		runners:     newRunners(stores, maps),
		limiter:     NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		ledger:      cfg.Ledger,
		maxFileSize: cfg.MaxFileSize,
		now:         time.Now,
	}
}

// Limiter exposes the batch limiter for status reporting and shutdown.
func (s *Service) Limiter() *Limiter { return s.limiter }

// MaxFileSize is the largest accepted input in bytes.
func (s *Service) MaxFileSize() int64 { return s.maxFileSize }

// Kinds describes every registered kind in display order.
func (s *Service) Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(s.runners))
	for _, k := range catalog.Kinds {
		if r, ok := s.runners[k]; ok {
			out = append(out, r.describe())
		}
	}
	return out
}

func (s *Service) IngestContent(ctx context.Context, fileName string, data []byte, opts Options) (*BatchResult, error) {
	return s.Ingest(ctx, catalog.KindContent, fileName, data, opts)
}

func (s *Service) IngestMedia(ctx context.Context, fileName string, data []byte, opts Options) (*BatchResult, error) {
	return s.Ingest(ctx, catalog.KindMedia, fileName, data, opts)
}

func (s *Service) IngestUpload(ctx context.Context, fileName string, data []byte, opts Options) (*BatchResult, error) {
	return s.Ingest(ctx, catalog.KindUpload, fileName, data, opts)
}

func (s *Service) IngestStats(ctx context.Context, fileName string, data []byte, opts Options) (*BatchResult, error) {
	return s.Ingest(ctx, catalog.KindStats, fileName, data, opts)
}

// Ingest runs one batch of kind over the file fileName.
//
// Problems with the input, including a file that cannot be read at all,
// are reported in the result. An error is returned only when the batch
// never ran: an unknown kind, or no free slot within the limiter's wait.
func (s *Service) Ingest(ctx context.Context, kind catalog.Kind, fileName string, data []byte, opts Options) (*BatchResult, error) {
	r, ok := s.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	started := s.now()
	batchID := ledger.NewBatchID()
	log := logging.WithFields(ctx, "batch_id", batchID, "kind", kind, "file", fileName)
	log.Info("batch started", "size", len(data), "dry_run", opts.DryRun)

	var rep Report
	for _, k := range r.counters() {
		rep.Count(k, 0)
	}

	file := FileInfo{Name: fileName, Size: int64(len(data))}
	format, fatal := s.check(fileName, data)
	file.Format = format

	var rows []Row
	if fatal == nil {
		var err error
		rows, err = readRows(format, data)
		if err != nil {
			fatal = readFailure(fileName, err)
		}
	}

	if fatal != nil {
		rep.Error(*fatal)
	} else {
		rep.Merge(r.run(ctx, rows, opts.DryRun, log))
	}

	res := rep.Finalize(batchID, kind, file, opts.DryRun, started, s.now())
	if !opts.DryRun {
		observeBatch(res)
		s.record(ctx, res, fatal != nil, log)
	}

	log.Info("batch finished",
		"outcome", res.Outcome(),
		"success", res.SuccessCount,
		"errors", res.ErrorCount,
		"warnings", res.WarningCount,
		"duration", res.ProcessingTime,
	)
	return res, nil
}

// check runs the batch-fatal checks that need no parsing.
func (s *Service) check(fileName string, data []byte) (Format, *Diagnostic) {
	if int64(len(data)) > s.maxFileSize {
		d := newDiagnostic(ClassFormat, 0, reasonFileTooLarge, fmt.Sprintf("file too large: %s exceeds the limit of %d bytes",
			fileName, s.maxFileSize))
		return "", &d
	}
	if len(data) == 0 {
		d := newDiagnostic(ClassEmpty, 0, reasonEmptyFile, fmt.Sprintf("empty file: %s contains no data", fileName))
		return "", &d
	}
	format, ok := DetectFormat(fileName)
	if !ok {
		d := newDiagnostic(ClassFormat, 0, reasonUnsupported, fmt.Sprintf("unsupported format: %s (supported: %s)",
			fileName, strings.Join(SupportedExtensions, ", ")))
		return "", &d
	}
	return format, nil
}

func readFailure(fileName string, err error) *Diagnostic {
	class := ClassFormat
	if errors.Is(err, errNoDataRows) || errors.Is(err, errEmptyFile) {
		class = ClassEmpty
	}
	d := newErrorDiagnostic(class, 0, err, fmt.Sprintf("%s: %v", fileName, err))
	return &d
}

// record appends one ledger entry per rejected row. A batch-fatal error is
// recorded once with row zero. Ledger failures are logged and never change
// the batch result.
func (s *Service) record(ctx context.Context, res *BatchResult, fatal bool, log *slog.Logger) {
	if s.ledger == nil {
		return
	}

	var written int
	for _, d := range res.Errors {
		rows := d.RowNumbers()
		if len(rows) == 0 {
			if !fatal {
				// Batch summaries repeat per-row entries.
				continue
			}
			rows = []int{0}
		}
		for i, row := range rows {
			e := ledger.Entry{
				BatchID:        res.BatchID,
				Kind:           string(res.Kind),
				RowNumber:      row,
				ErrorType:      string(d.Class),
				ErrorCode:      d.Code,
				Message:        d.Message,
				FieldName:      d.Field,
				AttemptedValue: d.Value,
				Suggestion:     d.Suggestion,
			}
			if i < len(d.raw) {
				e.RawData = d.raw[i]
			}
			if _, err := s.ledger.Append(ctx, e); err != nil {
				log.Error("ledger append failed", "row", row, "error", err)
				continue
			}
			written++
		}
	}
	if written > 0 {
		log.Info("rejected rows recorded", "entries", written)
	}
}
