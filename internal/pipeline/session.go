package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/publink/internal/metrics"
	"github.com/jpalmerr/publink/internal/probe"
	"github.com/jpalmerr/publink/internal/throttle"
)

const (
	// DefaultDebounce is the quiet period after the last edit before a run.
	DefaultDebounce = time.Second

	// DefaultMaxConcurrency caps the probes one run issues at a time.
	DefaultMaxConcurrency = 10
)

var (
	// ErrSessionClosed is returned by operations on a closed [Session].
	ErrSessionClosed = errors.New("session closed")

	// ErrRunSuperseded is returned by [Session.Flush] when a newer run was
	// started before the flushed run finished. Its results were discarded.
	ErrRunSuperseded = errors.New("run superseded by a newer run")
)

// Prober checks whether a URL is publicly reachable.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Result
}

// Extractor returns the deduplicated candidate URLs in text, in order of
// first occurrence.
type Extractor interface {
	Unique(text string) []string
}

// TextSource supplies the current text. It is read when the debounce timer
// expires, never at the time of the edit.
type TextSource interface {
	Text() string
}

// Toucher is implemented by text sources that need a no-op update of their
// value to re-render after warnings change. Touch must not change the text.
type Toucher interface {
	Touch()
}

// Config configures a [Session].
type Config struct {
	// ID identifies the session in logs. A random UUID if empty.
	ID string

	// Debounce is the quiet period. [DefaultDebounce] if zero.
	Debounce time.Duration

	// Extractor and Prober are required.
	Extractor Extractor
	Prober    Prober

	// Throttle records probe times and outcomes. A new session-scoped
	// [throttle.MemoryStore] if nil.
	Throttle throttle.Store

	// Message renders warning messages. [DefaultMessage] if nil.
	Message MessageFunc

	// MaxConcurrency caps probes in flight per run. [DefaultMaxConcurrency]
	// if zero.
	MaxConcurrency int

	// Source, if set, is read at debounce expiry instead of the text stored
	// with [Session.SetText].
	Source TextSource

	// Publish is called with every changed warning set. It must not call
	// [Session.Close].
	Publish func(WarningSet)

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Now is the clock used for throttling. time.Now if nil.
	Now func() time.Time
}

type state int

const (
	stateIdle state = iota
	statePending
)

// call is a probe in flight, shared by every run that needs its result.
type call struct {
	done   chan struct{}
	result probe.Result
}

// run is the work planned for one pipeline run.
type run struct {
	id      uint64
	urls    []string
	owned   []string
	calls   map[string]*call
	skipped []string
}

// Session is the pipeline for one text field.
//
// Session is safe for concurrent use. Close it when the field goes away.
type Session struct {
	id             string
	debounce       time.Duration
	extractor      Extractor
	prober         Prober
	throttle       throttle.Store
	message        MessageFunc
	maxConcurrency int
	source         TextSource
	publisher      func(WarningSet)
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup

	mu           sync.Mutex
	state        state
	timer        *time.Timer
	timerGen     uint64
	text         string
	lastRunID    uint64
	inflight     map[string]*call
	warnings     WarningSet
	version      uint64
	closed       bool
	lastActivity time.Time

	pubMu            sync.Mutex
	publishedVersion uint64
	hub              *hub
}

// NewSession creates an idle [Session] with an empty warning set.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.Prober == nil {
		return nil, errors.New("prober is required")
	}
	if cfg.Debounce < 0 {
		return nil, errors.New("debounce interval cannot be negative")
	}
	if cfg.MaxConcurrency < 0 {
		return nil, errors.New("max concurrency cannot be negative")
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Throttle == nil {
		cfg.Throttle = throttle.NewMemoryStore(throttle.DefaultInterval, throttle.DefaultRecordTTL)
	}
	if cfg.Message == nil {
		cfg.Message = DefaultMessage
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:             cfg.ID,
		debounce:       cfg.Debounce,
		extractor:      cfg.Extractor,
		prober:         cfg.Prober,
		throttle:       cfg.Throttle,
		message:        cfg.Message,
		maxConcurrency: cfg.MaxConcurrency,
		source:         cfg.Source,
		publisher:      cfg.Publish,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With("session", cfg.ID),
		now:            cfg.Now,
		ctx:            ctx,
		cancel:         cancel,
		inflight:       make(map[string]*call),
		warnings:       WarningSet{},
		lastActivity:   cfg.Now(),
		hub:            newHub(),
	}
	s.metrics.SessionOpened()

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetText stores text and reports a change.
func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.text = text
	s.changedLocked()
	return nil
}

// Changed reports an edit. It (re)starts the debounce timer; only the last
// edit of a burst leads to a run. Changed on a closed session does nothing.
func (s *Session) Changed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.changedLocked()
}

func (s *Session) changedLocked() {
	s.lastActivity = s.now()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	gen := s.timerGen
	s.state = statePending
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

// Pending reports whether a debounced run is waiting for its timer.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == statePending
}

// Warnings returns a copy of the current warning set.
func (s *Session) Warnings() WarningSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.warnings.Clone()
}

// LastActivity returns the time of the last edit, or of creation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActivity
}

// Subscribe returns a channel that receives every published warning set.
// The channel keeps only the newest set if the reader falls behind, and is
// closed by [Session.Unsubscribe] or [Session.Close]. Received sets are
// shared between subscribers and must not be modified.
func (s *Session) Subscribe() <-chan WarningSet {
	return s.hub.subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Session) Unsubscribe(ch <-chan WarningSet) {
	s.hub.unsubscribe(ch)
}

// Flush cancels any pending debounce and runs immediately, returning the
// resulting warning set. If ctx ends first, Flush returns ctx.Err() and the
// run completes in the background.
func (s *Session) Flush(ctx context.Context) (WarningSet, error) {
	var text string
	if s.source != nil {
		text = s.source.Text()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.state = stateIdle
	if s.source == nil {
		text = s.text
	}
	r := s.startRunLocked(text)
	s.mu.Unlock()

	type outcome struct {
		set WarningSet
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		set, err := s.execute(r)
		done <- outcome{set, err}
	}()

	select {
	case o := <-done:
		return o.set, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the debounce timer, cancels outstanding probes and waits for
// runs to return. Late results are ignored. Subscriber channels are closed.
// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.state = stateIdle
	s.mu.Unlock()

	s.cancel()
	s.runs.Wait()
	s.hub.close()

	s.metrics.SessionClosed()
	s.logger.Debug("session closed")
}

// fire is the debounce timer callback for timer generation gen.
func (s *Session) fire(gen uint64) {
	var text string
	if s.source != nil {
		text = s.source.Text()
	}

	s.mu.Lock()
	if s.closed || gen != s.timerGen || s.state != statePending {
		s.mu.Unlock()
		return
	}
	s.state = stateIdle
	s.timer = nil
	if s.source == nil {
		text = s.text
	}
	r := s.startRunLocked(text)
	s.mu.Unlock()

	_, _ = s.execute(r)
}

// startRunLocked assigns the next run id and decides, per URL, whether to
// join an in-flight probe, start a new one or skip it as throttled.
func (s *Session) startRunLocked(text string) *run {
	s.lastRunID++
	r := &run{
		id:    s.lastRunID,
		urls:  s.extractor.Unique(text),
		calls: make(map[string]*call),
	}

	now := s.now()
	for _, url := range r.urls {
		if c, ok := s.inflight[url]; ok {
			r.calls[url] = c
			continue
		}

		acquired, err := s.throttle.Acquire(s.ctx, url, now)
		if err != nil {
			s.logger.Warn("throttle store unavailable, probing anyway",
				"url", url,
				"error", err.Error(),
			)
			s.metrics.StoreError()
			acquired = true
		}
		if !acquired {
			s.metrics.ProbeThrottled()
			r.skipped = append(r.skipped, url)
			continue
		}

		c := &call{done: make(chan struct{})}
		s.inflight[url] = c
		r.calls[url] = c
		r.owned = append(r.owned, url)
	}

	s.runs.Add(1)
	return r
}

// execute probes, waits for every call the run depends on and reconciles if
// the run is still the latest. It returns the session's warning set after
// the run.
func (s *Session) execute(r *run) (WarningSet, error) {
	defer s.runs.Done()

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for _, url := range r.owned {
		url := url
		c := r.calls[url]
		g.Go(func() error {
			s.runProbe(url, c)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make(map[string]bool, len(r.calls)+len(r.skipped))
	for url, c := range r.calls {
		<-c.done
		outcomes[url] = c.result.Reachable
	}

	// a throttled url with no recorded outcome is still being probed by
	// another session sharing the store; probe it here too. On one replica
	// the prober merges the requests.
	var unknown []string
	for _, url := range r.skipped {
		rec, found, err := s.throttle.Lookup(s.ctx, url)
		if err != nil {
			s.logger.Warn("throttle store lookup failed", "url", url, "error", err.Error())
			s.metrics.StoreError()
			continue
		}
		if found && rec.Known {
			outcomes[url] = rec.Reachable
			continue
		}
		unknown = append(unknown, url)
	}
	if len(unknown) > 0 {
		reachable := make([]bool, len(unknown))
		g := errgroup.Group{}
		g.SetLimit(s.maxConcurrency)
		for i, url := range unknown {
			i, url := i, url
			g.Go(func() error {
				s.logger.Debug("throttled url has no recorded outcome, probing", "url", url)
				reachable[i] = s.probeAndRecord(url).Reachable
				return nil
			})
		}
		_ = g.Wait()
		for i, url := range unknown {
			outcomes[url] = reachable[i]
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if r.id != s.lastRunID {
		latest := s.lastRunID
		current := s.warnings.Clone()
		s.mu.Unlock()

		s.metrics.RunFinished(metrics.RunSuperseded)
		s.logger.Debug("discarding superseded run", "run_id", r.id, "latest_run_id", latest)
		return current, ErrRunSuperseded
	}

	next := reconcile(s.warnings, r.urls, outcomes, s.message)
	changed := !next.Equal(s.warnings)
	if changed {
		s.warnings = next
		s.version++
	}
	ver := s.version
	set := s.warnings.Clone()
	s.mu.Unlock()

	s.logger.Debug("run completed",
		"run_id", r.id,
		"urls", len(r.urls),
		"probed", len(r.owned),
		"throttled", len(r.skipped),
		"warnings", len(set),
		"changed", changed,
	)

	if !changed {
		s.metrics.RunFinished(metrics.RunUnchanged)
		return set, nil
	}
	s.metrics.RunFinished(metrics.RunPublished)
	s.publish(ver, set)
	return set, nil
}

// runProbe probes url on behalf of every run waiting on c.
func (s *Session) runProbe(url string, c *call) {
	res := s.probeAndRecord(url)

	s.mu.Lock()
	if s.inflight[url] == c {
		delete(s.inflight, url)
	}
	s.mu.Unlock()

	c.result = res
	close(c.done)
}

// probeAndRecord probes url and stores the outcome unless the session is
// closing.
func (s *Session) probeAndRecord(url string) probe.Result {
	res := s.prober.Probe(s.ctx, url)

	if s.ctx.Err() == nil {
		if err := s.throttle.RecordOutcome(s.ctx, url, res.Reachable); err != nil {
			s.logger.Warn("failed to record probe outcome", "url", url, "error", err.Error())
			s.metrics.StoreError()
		}
	}
	return res
}
