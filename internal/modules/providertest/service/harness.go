package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	providerdomain "provhost/internal/modules/provider/domain"
	"provhost/internal/modules/providertest/domain"
	providertestout "provhost/internal/modules/providertest/port/out"
	"provhost/internal/platform/clock"
	"provhost/internal/platform/id"
)

type HarnessDeps struct {
	Source      providertestout.ProviderSource
	Clock       clock.Clock
	IDs         id.Generator
	CaseTimeout time.Duration
	Logger      hclog.Logger
	Metrics     providertestout.Metrics
}

// Harness runs the property and method batteries against one provider at a
// time on a single supervisor goroutine.
type Harness struct {
	source      providertestout.ProviderSource
	clock       clock.Clock
	ids         id.Generator
	caseTimeout time.Duration
	logger      hclog.Logger
	metrics     providertestout.Metrics

	mu          sync.Mutex
	state       domain.JobState
	stage       domain.Stage
	results     []domain.RunResult
	sample      *providerdomain.Film
	cancel      context.CancelFunc
	done        chan struct{}
	resume      chan struct{}
	subscribers map[int]chan domain.Snapshot
	nextSub     int
}

func NewHarness(deps HarnessDeps) *Harness {
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	c := deps.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	ids := deps.IDs
	if ids == nil {
		ids = id.UUID{}
	}
	return &Harness{
		source:      deps.Source,
		clock:       c,
		ids:         ids,
		caseTimeout: deps.CaseTimeout,
		logger:      logger.Named("harness"),
		metrics:     deps.Metrics,
		subscribers: map[int]chan domain.Snapshot{},
	}
}

func (h *Harness) Start(ctx context.Context, targets []domain.Target) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != domain.JobIdle {
		return domain.ErrJobRunning
	}
	if len(targets) == 0 {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.state = domain.JobRunning
	h.stage = domain.Stage{Kind: domain.StagePropertyChecks, Provider: targets[0].ID}
	h.sample = nil
	h.publishLocked()

	go h.supervise(runCtx, append([]domain.Target(nil), targets...), h.done)
	return nil
}

func (h *Harness) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != domain.JobRunning {
		return domain.ErrJobNotRunning
	}
	h.state = domain.JobPaused
	h.resume = make(chan struct{})
	h.publishLocked()
	return nil
}

func (h *Harness) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != domain.JobPaused {
		return domain.ErrJobNotPaused
	}
	h.state = domain.JobRunning
	close(h.resume)
	h.resume = nil
	h.publishLocked()
	return nil
}

// Stop cancels the active run and waits for the supervisor to exit.
func (h *Harness) Stop() error {
	h.mu.Lock()
	if h.state == domain.JobIdle {
		h.mu.Unlock()
		return domain.ErrJobNotRunning
	}
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	cancel()
	<-done
	return nil
}

// Wait blocks until the active run finishes. It returns immediately when idle.
func (h *Harness) Wait(ctx context.Context) error {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Harness) Snapshot() domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Subscribe delivers a snapshot after every state change. Slow subscribers
// miss intermediate snapshots rather than blocking the run.
func (h *Harness) Subscribe(buffer int) (<-chan domain.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Snapshot, buffer)
	h.mu.Lock()
	key := h.nextSub
	h.nextSub++
	h.subscribers[key] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, key)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Harness) supervise(ctx context.Context, targets []domain.Target, done chan struct{}) {
	defer func() {
		h.mu.Lock()
		h.discardRunningLocked()
		h.state = domain.JobIdle
		h.stage = domain.Stage{}
		h.cancel()
		h.cancel = nil
		h.done = nil
		if h.resume != nil {
			close(h.resume)
			h.resume = nil
		}
		h.publishLocked()
		h.mu.Unlock()
		close(done)
	}()

	for _, target := range targets {
		if err := h.checkpoint(ctx); err != nil {
			h.logger.Info("test run stopped", "before", target.ID)
			return
		}
		h.testProvider(ctx, target)
		if ctx.Err() != nil {
			h.logger.Info("test run stopped", "during", target.ID)
			return
		}
	}
	h.logger.Info("test run finished", "providers", len(targets))
}

func (h *Harness) testProvider(ctx context.Context, target domain.Target) {
	run := h.beginRun(target)
	logger := h.logger.With("provider", target.ID)

	state := &subjectHolder{}
	result, ok := h.runCase(ctx, run, resolveAPI(h.source, target.ID), state)
	if !ok {
		return
	}
	if result.Status != domain.StatusSuccess {
		logger.Warn("provider api unavailable, skipping batteries", "error", result.ShortLog)
		h.setStage(domain.StageDone, target.ID)
		return
	}

	h.captureSample(ctx, state)

	if !h.runBattery(ctx, run, propertyChecks(), state) {
		return
	}
	h.setStage(domain.StageMethodChecks, target.ID)
	if !h.runBattery(ctx, run, methodChecks(), state) {
		return
	}
	h.setStage(domain.StageDone, target.ID)
	logger.Debug("provider tested")
}

// subjectHolder owns the battery subject on the supervisor goroutine.
type subjectHolder struct {
	subject subject
}

func (s *subjectHolder) update(fn func(*subject)) {
	if fn != nil {
		fn(&s.subject)
	}
}

// runBattery returns false when the run was cancelled.
func (h *Harness) runBattery(ctx context.Context, run int, cases []testCase, state *subjectHolder) bool {
	for _, tc := range cases {
		result, ok := h.runCase(ctx, run, tc, state)
		if !ok {
			return false
		}
		if tc.stopOnFailure && result.Status == domain.StatusFailure {
			h.logger.Debug("stopping battery", "case", tc.name)
			break
		}
	}
	return ctx.Err() == nil
}

type caseDone struct {
	output caseOutput
	err    error
}

// runCase executes one case. It reports false when the run was cancelled,
// in which case the in-flight entry is left for the supervisor to discard.
func (h *Harness) runCase(ctx context.Context, run int, tc testCase, state *subjectHolder) (domain.CaseResult, bool) {
	if err := h.checkpoint(ctx); err != nil {
		return domain.CaseResult{}, false
	}
	h.appendCase(run, domain.CaseResult{Name: tc.name, Status: domain.StatusRunning})

	started := h.clock.Now()
	current := state.subject
	outcome, ok := h.execute(ctx, func(ctx context.Context) (caseOutput, error) {
		return tc.run(ctx, current)
	})
	if !ok {
		return domain.CaseResult{}, false
	}

	result := classify(tc.name, outcome, h.clock.Now().Sub(started))
	if result.Status == domain.StatusSuccess {
		state.update(outcome.output.apply)
	}
	h.finishCase(run, result)
	if h.metrics != nil {
		h.metrics.TestCaseFinished(string(result.Status), result.Elapsed)
	}
	return result, true
}

// execute runs fn on its own goroutine bounded by the case timeout. Panics
// become errors. It reports false when ctx was cancelled.
func (h *Harness) execute(ctx context.Context, fn func(context.Context) (caseOutput, error)) (caseDone, bool) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if h.caseTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, h.caseTimeout)
	}
	defer cancel()

	finished := make(chan caseDone, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				finished <- caseDone{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		output, err := fn(callCtx)
		finished <- caseDone{output: output, err: err}
	}()

	var (
		outcome  caseDone
		received bool
	)
	select {
	case outcome = <-finished:
		received = true
	case <-callCtx.Done():
	}
	if ctx.Err() != nil {
		return caseDone{}, false
	}
	if callCtx.Err() != nil && (!received || outcome.err != nil) {
		outcome = caseDone{err: fmt.Errorf("timed out after %s: %w", h.caseTimeout, callCtx.Err())}
	}
	return outcome, true
}

func classify(name string, outcome caseDone, elapsed time.Duration) domain.CaseResult {
	result := domain.CaseResult{Name: name, Elapsed: elapsed}
	switch {
	case outcome.err == nil:
		result.Status = domain.StatusSuccess
		result.ShortLog = outcome.output.summary
		result.FullLog = fullLog(outcome.output.payload, nil)
	case errors.Is(outcome.err, providerdomain.ErrNotImplemented):
		result.Status = domain.StatusNotImplemented
		result.ShortLog = "Not implemented"
		result.FullLog = fullLog(nil, outcome.err)
	default:
		result.Status = domain.StatusFailure
		result.ShortLog = "Failed: " + firstLine(outcome.err.Error())
		result.FullLog = fullLog(nil, outcome.err)
	}
	return result
}

// captureSample records a representative film. Failures are not recorded as cases.
func (h *Harness) captureSample(ctx context.Context, state *subjectHolder) {
	api := state.subject.api
	outcome, ok := h.execute(ctx, func(ctx context.Context) (caseOutput, error) {
		film, err := api.TestFilm(ctx)
		return caseOutput{payload: film}, err
	})
	if !ok {
		return
	}
	if outcome.err != nil {
		h.logger.Debug("no sample film", "error", outcome.err)
		return
	}
	film, _ := outcome.output.payload.(providerdomain.Film)
	if film.ID == "" {
		h.logger.Debug("test film has no id, no sample")
		return
	}
	state.subject.film = &film
	h.mu.Lock()
	h.sample = &film
	h.publishLocked()
	h.mu.Unlock()
}

// checkpoint blocks while paused and reports cancellation.
func (h *Harness) checkpoint(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.mu.Lock()
		resume := h.resume
		h.mu.Unlock()
		if resume == nil {
			return nil
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Harness) beginRun(target domain.Target) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := 0
	for _, result := range h.results {
		if result.Provider.ID == target.ID {
			previous++
		}
	}
	label := target.Name
	if label == "" {
		label = target.ID
	}
	if previous > 0 {
		label = fmt.Sprintf("%s (%d)", label, previous+1)
	}
	h.results = append(h.results, domain.RunResult{
		ID:        h.ids.New(),
		Provider:  target,
		Label:     label,
		StartedAt: h.clock.Now(),
		Cases:     []domain.CaseResult{},
	})
	h.stage = domain.Stage{Kind: domain.StagePropertyChecks, Provider: target.ID}
	h.publishLocked()
	return len(h.results) - 1
}

func (h *Harness) setStage(kind domain.StageKind, provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stage = domain.Stage{Kind: kind, Provider: provider}
	h.publishLocked()
}

func (h *Harness) appendCase(run int, result domain.CaseResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[run].Cases = append(h.results[run].Cases, result)
	h.publishLocked()
}

func (h *Harness) finishCase(run int, result domain.CaseResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cases := h.results[run].Cases
	cases[len(cases)-1] = result
	h.publishLocked()
}

func (h *Harness) discardRunningLocked() {
	if len(h.results) == 0 {
		return
	}
	last := &h.results[len(h.results)-1]
	if n := len(last.Cases); n > 0 && last.Cases[n-1].Status == domain.StatusRunning {
		last.Cases = last.Cases[:n-1]
	}
}

func (h *Harness) snapshotLocked() domain.Snapshot {
	snapshot := domain.Snapshot{
		Stage:   h.stage,
		State:   h.state,
		Results: domain.CloneResults(h.results),
	}
	if h.sample != nil {
		sample := *h.sample
		snapshot.Sample = &sample
	}
	return snapshot
}

func (h *Harness) publishLocked() {
	if len(h.subscribers) == 0 {
		return
	}
	snapshot := h.snapshotLocked()
	for _, ch := range h.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}
