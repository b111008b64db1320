package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/store"
)

// Refresher re-checks the dataset and reports whether the match table was rebuilt
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
	Current() *store.Snapshot
}

// ReloadPublisher announces a rebuilt match table
type ReloadPublisher interface {
	PublishDatasetLoaded(ctx context.Context, snap *store.Snapshot) error
}

// Orchestrator keeps the match table warm on a cron schedule
type Orchestrator struct {
	refresher  Refresher
	publishers []ReloadPublisher
	config     *Config
	cron       *cron.Cron
	entry      cron.EntryID
	cancel     context.CancelFunc

	mu                sync.Mutex
	runs              int
	reloads           int
	consecutiveErrors int
	lastRun           time.Time
	lastReload        time.Time
	lastError         string
}

// Config holds scheduler configuration
type Config struct {
	Schedule   string        // Default: @every 1m
	MaxRetries int           // Default: 3
	RetryDelay time.Duration // Default: 5s
	RunTimeout time.Duration // Default: 2m
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:   "@every 1m",
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		RunTimeout: 2 * time.Minute,
	}
}

// NewOrchestrator creates a scheduler that announces every reload to publishers
func NewOrchestrator(refresher Refresher, config *Config, publishers ...ReloadPublisher) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}

	o := &Orchestrator{
		refresher:  refresher,
		publishers: publishers,
		config:     config,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}

	entry, err := o.cron.AddFunc(config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.config.RunTimeout)
		defer cancel()
		o.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", config.Schedule, err)
	}
	o.entry = entry

	return o, nil
}

// Start warms the match table, then refreshes it on schedule until ctx is done
func (o *Orchestrator) Start(ctx context.Context) {
	log.Printf("→ Refresh scheduler started (schedule: %s)", o.config.Schedule)

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	// Run immediately on start
	warmCtx, warmCancel := context.WithTimeout(ctx, o.config.RunTimeout)
	o.RunOnce(warmCtx)
	warmCancel()

	o.cron.Start()

	<-ctx.Done()
	<-o.cron.Stop().Done()
	log.Println("→ Refresh scheduler stopped")
}

// RunOnce refreshes the match table with retries and publishes a reload event
// when a new table was built. It returns the last error once retries run out.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	var reloaded bool
	var err error

retry:
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		reloaded, err = o.refresher.Refresh(ctx)
		if err == nil {
			break
		}

		log.Warnf("  ⚠️  Refresh attempt %d/%d failed: %v", attempt, o.config.MaxRetries, err)

		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break retry
			case <-time.After(o.config.RetryDelay):
			}
		}
	}

	o.record(reloaded, err)

	if err != nil {
		log.Errorf("  ❌ Dataset refresh failed after %d attempt(s): %v", o.config.MaxRetries, err)
		return err
	}

	if !reloaded {
		return nil
	}

	snap := o.refresher.Current()
	if snap == nil {
		return nil
	}
	for _, pub := range o.publishers {
		if err := pub.PublishDatasetLoaded(ctx, snap); err != nil {
			log.Warnf("  ⚠️  Failed to publish reload of %s: %v", snap.Fingerprint, err)
		}
	}
	log.WithField("fingerprint", snap.Fingerprint).Infof("  ✓ Dataset reload announced to %d publisher(s)", len(o.publishers))

	return nil
}

func (o *Orchestrator) record(reloaded bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.runs++
	o.lastRun = time.Now()
	if err != nil {
		o.consecutiveErrors++
		o.lastError = err.Error()
		return
	}

	o.consecutiveErrors = 0
	o.lastError = ""
	if reloaded {
		o.reloads++
		o.lastReload = o.lastRun
	}
}

// Stop gracefully stops the scheduler
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Status returns current scheduler status
func (o *Orchestrator) Status() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"schedule":           o.config.Schedule,
		"runs":               o.runs,
		"reloads":            o.reloads,
		"consecutive_errors": o.consecutiveErrors,
	}
	if !o.lastRun.IsZero() {
		status["last_run"] = o.lastRun.UTC().Format(time.RFC3339)
	}
	if !o.lastReload.IsZero() {
		status["last_reload"] = o.lastReload.UTC().Format(time.RFC3339)
	}
	if o.lastError != "" {
		status["last_error"] = o.lastError
	}
	if next := o.cron.Entry(o.entry).Next; !next.IsZero() {
		status["next_run"] = next.UTC().Format(time.RFC3339)
	}
	return status
}
