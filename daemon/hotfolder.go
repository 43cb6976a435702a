package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/resource"
)

const (
	defaultScanDepth    = 1
	defaultTickInterval = time.Second
)

// Submitter receives every page image discovered by a hotfolder scan.
// Submission errors are logged and do not stop the scheduler.
type Submitter interface {
	Submit(ctx context.Context, page core.Page) error
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(ctx context.Context, page core.Page) error

// Submit implements Submitter.
func (f SubmitFunc) Submit(ctx context.Context, page core.Page) error {
	return f(ctx, page)
}

// HotfolderConfig configures a hotfolder scheduler.
type HotfolderConfig struct {
	// Folder is the watched input folder.
	Folder string

	// Extension filters discovered files case-insensitively (e.g.
	// ".png"). Empty accepts every file.
	Extension string

	// ScanDepth bounds the recursive scan below Folder (default 1).
	ScanDepth int

	// Cron is the five-field UTC schedule driving scans.
	Cron string

	// Submitter receives discovered pages.
	Submitter Submitter

	// TickInterval is how often the scheduler checks whether the next
	// cron activation is due. Tests shorten it.
	TickInterval time.Duration

	// Now overrides the clock.
	Now func() time.Time

	Logger *slog.Logger
}

// Hotfolder periodically scans an input folder on a cron schedule and
// submits each newly discovered or modified page image exactly once.
type Hotfolder struct {
	folder       string
	extension    string
	scanDepth    int
	cron         string
	submitter    Submitter
	tickInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu     sync.Mutex
	seen   map[string]time.Time // path -> modification time at submission
	nextAt time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHotfolder creates a hotfolder scheduler. The cron expression is
// validated immediately.
func NewHotfolder(cfg HotfolderConfig) (*Hotfolder, error) {
	if cfg.Folder == "" {
		return nil, errors.New("hotfolder: folder is required")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("hotfolder: submitter is required")
	}
	if _, err := parseCronUTC(cfg.Cron); err != nil {
		return nil, err
	}
	if cfg.ScanDepth <= 0 {
		cfg.ScanDepth = defaultScanDepth
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Hotfolder{
		folder:       cfg.Folder,
		extension:    cfg.Extension,
		scanDepth:    cfg.ScanDepth,
		cron:         cfg.Cron,
		submitter:    cfg.Submitter,
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		logger:       cfg.Logger,
		seen:         make(map[string]time.Time),
	}, nil
}

// Start begins background scanning. Calling Start on a running
// scheduler is a no-op.
func (h *Hotfolder) Start() error {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return nil
	}

	next, err := NextRunUTC(h.cron, h.now())
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.nextAt = next

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(h.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				h.runDue(loopCtx)
			}
		}
	}()
	return nil
}

// Stop halts background scanning and waits for the loop to exit.
func (h *Hotfolder) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.cancel = nil
	h.done = nil
	h.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runDue performs a scan when the cron schedule is due and advances the
// next activation.
func (h *Hotfolder) runDue(ctx context.Context) {
	now := h.now().UTC()

	h.mu.Lock()
	due := !now.Before(h.nextAt)
	if due {
		if next, err := NextRunUTC(h.cron, now); err == nil {
			h.nextAt = next
		}
	}
	h.mu.Unlock()

	if due {
		h.Scan(ctx)
	}
}

// Scan performs a single hotfolder pass: it lists the input folder and
// submits every file not submitted before (or modified since). A
// listing failure is logged and the pass yields nothing; the scheduler
// keeps running.
func (h *Hotfolder) Scan(ctx context.Context) int {
	paths, err := resource.ListFiles(h.folder, h.scanDepth, h.extension)
	if err != nil {
		h.logger.Error("hotfolder scan", "folder", h.folder, "error", err)
		return 0
	}

	submitted := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		h.mu.Lock()
		prev, known := h.seen[path]
		fresh := !known || info.ModTime().After(prev)
		if fresh {
			h.seen[path] = info.ModTime()
		}
		h.mu.Unlock()

		if !fresh {
			continue
		}

		page := core.Page{
			ID:       uuid.NewString(),
			Path:     path,
			Modified: info.ModTime(),
		}
		if err := h.submitter.Submit(ctx, page); err != nil {
			h.logger.Error("submit page", "path", path, "error", err)
			// Allow a retry on the next scan.
			h.mu.Lock()
			delete(h.seen, path)
			h.mu.Unlock()
			continue
		}
		submitted++
	}
	return submitted
}

// NextActivation returns the next scheduled scan time.
func (h *Hotfolder) NextActivation() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextAt
}
