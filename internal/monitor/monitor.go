package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"NFTSentinel/internal/matcher"
	"NFTSentinel/internal/model"
	"NFTSentinel/internal/quote"
	"NFTSentinel/internal/store"
)

// Emitter receives every alert that transitions to triggered.
type Emitter interface {
	Emit(ctx context.Context, alert model.PriceAlert, q model.Quote) (model.Trigger, error)
}

// Options tune a Monitor. Zero values fall back to the defaults.
type Options struct {
	GroupDelay  time.Duration
	CallTimeout time.Duration
}

const (
	DefaultGroupDelay  = time.Second
	DefaultCallTimeout = 30 * time.Second
)

// Monitor polls active alerts on a timer and fires the ones whose threshold is crossed.
type Monitor struct {
	Store  store.AlertStore
	Quoter quote.Quoter
	Rates  matcher.RateLookup
	Sink   Emitter
	Log    *zap.Logger

	groupDelay  time.Duration
	callTimeout time.Duration
	ctx         context.Context

	mu         sync.Mutex
	cron       *cron.Cron
	running    bool
	interval   time.Duration
	cycleDone  chan struct{}
	rerun      bool
	overlaps   int
	lastReport *CycleReport
}

// New creates a stopped Monitor. ctx bounds every cycle the timer starts.
func New(ctx context.Context, st store.AlertStore, q quote.Quoter, rates matcher.RateLookup, sink Emitter, log *zap.Logger, opts Options) *Monitor {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.GroupDelay < 0 {
		opts.GroupDelay = 0
	} else if opts.GroupDelay == 0 {
		opts.GroupDelay = DefaultGroupDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Monitor{
		Store:       st,
		Quoter:      q,
		Rates:       rates,
		Sink:        sink,
		Log:         log,
		groupDelay:  opts.GroupDelay,
		callTimeout: opts.CallTimeout,
		ctx:         ctx,
	}
}

// Start runs one cycle right away and then one every interval.
// Starting a running monitor is a no-op.
func (m *Monitor) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("start monitor: interval must be positive, got %v", interval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.Log.Info("monitor already running", zap.Duration("interval", m.interval))
		return nil
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), m.runCycle); err != nil {
		return fmt.Errorf("register monitor cycle: %w", err)
	}
	m.cron = c
	m.running = true
	m.interval = interval
	c.Start()
	if m.cycleDone != nil {
		// A cycle from before the last Stop is still finishing; run again once it does.
		m.rerun = true
	} else {
		go m.runCycle()
	}

	m.Log.Info("monitor started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels the timer. A cycle already in progress is left to finish; the
// returned context is done once it has.
func (m *Monitor) Stop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		cancel()
		return ctx
	}
	m.running = false
	m.rerun = false
	cronDone := m.cron.Stop()
	m.cron = nil
	cycle := m.cycleDone

	go func() {
		defer cancel()
		<-cronDone.Done()
		if cycle != nil {
			<-cycle
		}
	}()

	m.Log.Info("monitor stopped")
	return ctx
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status is a snapshot of the monitor for the host.
type Status struct {
	Running         bool         `json:"running"`
	Interval        string       `json:"interval,omitempty"`
	CycleInFlight   bool         `json:"cycleInFlight"`
	SkippedOverlaps int          `json:"skippedOverlaps"`
	LastCycle       *CycleReport `json:"lastCycle,omitempty"`
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Running:         m.running,
		CycleInFlight:   m.cycleDone != nil,
		SkippedOverlaps: m.overlaps,
	}
	if m.running {
		s.Interval = m.interval.String()
	}
	if m.lastReport != nil {
		r := *m.lastReport
		s.LastCycle = &r
	}
	return s
}

// runCycle is the timer entry point. A tick that arrives while a cycle is
// still in flight is skipped.
func (m *Monitor) runCycle() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if m.cycleDone != nil {
		m.overlaps++
		m.mu.Unlock()
		m.Log.Warn("previous monitoring cycle still running, skipping tick")
		return
	}
	done := make(chan struct{})
	m.cycleDone = done
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cycleDone = nil
		rerun := m.rerun && m.running
		m.rerun = false
		m.mu.Unlock()
		close(done)
		if rerun {
			go m.runCycle()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			m.Log.Error("monitoring cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	report := m.CheckAllAlerts(m.ctx)
	m.mu.Lock()
	m.lastReport = &report
	m.mu.Unlock()
}

// CycleReport summarizes one pass over the active alerts.
type CycleReport struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Alerts    int           `json:"alerts"`
	Groups    int           `json:"groups"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Triggered int           `json:"triggered"`
	Error     string        `json:"error,omitempty"`
}

// Group is the set of active alerts sharing one collection name.
type Group struct {
	CollectionName string
	Alerts         []model.PriceAlert
}

// GroupByCollection partitions alerts by exact collection name, keeping the
// order in which each name first appears.
func GroupByCollection(alerts []model.PriceAlert) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, a := range alerts {
		i, ok := index[a.CollectionName]
		if !ok {
			i = len(groups)
			index[a.CollectionName] = i
			groups = append(groups, Group{CollectionName: a.CollectionName})
		}
		groups[i].Alerts = append(groups[i].Alerts, a)
	}
	return groups
}

type groupOutcome int

const (
	groupProcessed groupOutcome = iota
	groupSkipped
	groupFailed
)

// CheckAllAlerts runs one monitoring cycle: every collection group gets one
// quote, one history point, and an evaluation of each of its alerts. Groups are
// handled one at a time with a pause between them; a failing group never stops
// the rest.
func (m *Monitor) CheckAllAlerts(ctx context.Context) CycleReport {
	report := CycleReport{StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	alerts, err := m.Store.GetActiveAlerts(ctx)
	if err != nil {
		m.Log.Error("load active alerts", zap.Error(err))
		report.Error = err.Error()
		return report
	}
	report.Alerts = len(alerts)
	if len(alerts) == 0 {
		m.Log.Debug("no active alerts")
		return report
	}

	groups := GroupByCollection(alerts)
	report.Groups = len(groups)
	m.Log.Info("monitoring cycle started", zap.Int("alerts", len(alerts)), zap.Int("collections", len(groups)))

	for i, g := range groups {
		if ctx.Err() != nil {
			break
		}
		outcome, triggered := m.processGroup(ctx, g)
		report.Triggered += triggered
		switch outcome {
		case groupProcessed:
			report.Processed++
		case groupSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
		if i < len(groups)-1 && !sleep(ctx, m.groupDelay) {
			break
		}
	}

	m.Log.Info("monitoring cycle finished",
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("triggered", report.Triggered),
		zap.Duration("took", time.Since(report.StartedAt)))
	return report
}

func (m *Monitor) processGroup(ctx context.Context, g Group) (outcome groupOutcome, triggered int) {
	log := m.Log.With(zap.String("collection", g.CollectionName))
	defer func() {
		if r := recover(); r != nil {
			log.Error("collection group panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = groupFailed
		}
	}()

	q, err := m.fetchQuote(ctx, g.CollectionName)
	if err != nil {
		if errors.Is(err, model.ErrQuoteUnavailable) {
			log.Warn("no quote, skipping collection this cycle", zap.Error(err))
			return groupSkipped, 0
		}
		log.Error("fetch quote", zap.Error(err))
		return groupFailed, 0
	}

	if err := m.Store.RecordPriceHistory(ctx, model.PriceHistoryPoint{
		CollectionName:    q.CollectionName,
		CollectionAddress: q.CollectionAddress,
		Price:             q.Price,
		Currency:          q.Currency,
		Source:            q.Source,
	}); err != nil {
		log.Error("record price history", zap.Error(err))
	}

	// Per-alert failures are already logged and retried next cycle.
	triggers, _ := m.ApplyQuote(ctx, g.Alerts, q)
	return groupProcessed, len(triggers)
}

func (m *Monitor) fetchQuote(ctx context.Context, collectionName string) (model.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	q, err := m.Quoter.Quote(qctx, collectionName)
	if err != nil {
		if qctx.Err() != nil && !errors.Is(err, model.ErrQuoteUnavailable) {
			return model.Quote{}, fmt.Errorf("%v: %w", err, model.ErrQuoteUnavailable)
		}
		return model.Quote{}, err
	}
	if !q.Price.IsPositive() || !q.Currency.Supported() {
		return model.Quote{}, fmt.Errorf("unusable quote %s %q: %w", q.Price, q.Currency, model.ErrQuoteUnavailable)
	}
	q.CollectionName = collectionName
	return q, nil
}

// ApplyQuote evaluates each alert against q, records the outcome, and emits
// the alerts that fired. An alert whose status update fails is not emitted;
// it stays active and is retried on a later cycle.
func (m *Monitor) ApplyQuote(ctx context.Context, alerts []model.PriceAlert, q model.Quote) ([]model.Trigger, error) {
	var (
		triggers []model.Trigger
		errs     []error
	)
	for _, a := range alerts {
		log := m.Log.With(zap.Int64("alert_id", a.ID), zap.String("user_id", a.UserID))

		hit, err := matcher.Evaluate(ctx, a, q, m.Rates)
		if err != nil {
			if errors.Is(err, model.ErrConversionUnavailable) {
				log.Warn("conversion unavailable, not triggering", zap.Error(err))
			} else {
				log.Error("evaluate alert", zap.Error(err))
				errs = append(errs, fmt.Errorf("evaluate alert %d: %w", a.ID, err))
			}
			hit = false
		}

		price := q.Price
		applied, err := m.Store.UpdateAlertStatus(ctx, a.ID, hit, &price)
		if err != nil {
			log.Error("update alert status", zap.Bool("triggered", hit), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !hit || !applied {
			continue
		}

		log.Info("alert triggered",
			zap.String("collection", a.CollectionName),
			zap.String("price", q.Price.String()),
			zap.String("currency", string(q.Currency)),
			zap.String("threshold", a.ThresholdPrice.String()),
			zap.String("type", string(a.ThresholdType)))

		at := time.Now()
		a.IsActive = false
		a.TriggeredAt = &at
		a.LastCheckedAt = &at
		t, err := m.Sink.Emit(ctx, a, q)
		if err != nil {
			log.Warn("emit notification", zap.Error(err))
			errs = append(errs, err)
		}
		triggers = append(triggers, t)
	}
	return triggers, errors.Join(errs...)
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
