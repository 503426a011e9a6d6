package service_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	providerdomain "provhost/internal/modules/provider/domain"
	"provhost/internal/modules/providertest/domain"
	"provhost/internal/modules/providertest/service"
)

var fullBattery = []string{
	service.CaseProviderAPI,
	service.CaseBaseURL, service.CaseTestFilm, service.CaseCatalogs, service.CaseFilters,
	service.CaseCatalogItems, service.CaseSearch, service.CaseMetadata, service.CaseLinks,
}

func TestHarnessRunsBothBatteriesInOrder(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	h, metrics := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), time.Second)

	snapshot := runToCompletion(t, h, targets("p1"))
	if snapshot.State != domain.JobIdle || !snapshot.Stage.IsIdle() || snapshot.Stage.Provider != "" {
		t.Fatalf("expected terminal idle, got %+v %+v", snapshot.State, snapshot.Stage)
	}
	if len(snapshot.Results) != 1 {
		t.Fatalf("expected one run, got %d", len(snapshot.Results))
	}
	run := snapshot.Results[0]
	if run.ID != "run-1" || run.Label != "Provider p1" || run.StartedAt.IsZero() {
		t.Fatalf("unexpected run header %+v", run)
	}
	if got := caseNames(run); !reflect.DeepEqual(got, fullBattery) {
		t.Fatalf("unexpected case order %v", got)
	}
	for _, c := range run.Cases {
		if c.Status != domain.StatusSuccess {
			t.Fatalf("case %s: %s %s", c.Name, c.Status, c.ShortLog)
		}
		if c.Elapsed <= 0 {
			t.Fatalf("case %s has no elapsed time", c.Name)
		}
	}
	if snapshot.Sample == nil || snapshot.Sample.ID != "f1" {
		t.Fatalf("expected sample film, got %+v", snapshot.Sample)
	}
	if links := findCase(t, run, service.CaseLinks); !strings.Contains(links.FullLog, "e1.m3u8") {
		t.Fatalf("full log should carry the payload, got %q", links.FullLog)
	}
	if metrics.statuses[string(domain.StatusSuccess)] != len(fullBattery) {
		t.Fatalf("unexpected metrics %v", metrics.statuses)
	}
}

func TestHarnessPublishesNoSampleForEmptyTestFilm(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.film = providerdomain.Film{}
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), time.Second)

	snapshot := runToCompletion(t, h, targets("p1"))
	if snapshot.Sample != nil {
		t.Fatalf("expected no sample for an empty test film, got %+v", snapshot.Sample)
	}
}

func TestHarnessSeparatesNotImplementedFromFailure(t *testing.T) {
	t.Parallel()
	p1 := newFakeAPI()
	p2 := newFakeAPI()
	p2.errs["Search"] = fmt.Errorf("%w: search", providerdomain.ErrNotImplemented)
	p2.errs["Filters"] = errors.New("filters endpoint returned 500")
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": p1, "p2": p2}), time.Second)

	snapshot := runToCompletion(t, h, targets("p1", "p2"))
	first := findCase(t, snapshot.Results[0], service.CaseSearch)
	if first.Status != domain.StatusSuccess || first.ShortLog != `Found 2 items for "Dune"` {
		t.Fatalf("p1 search: %+v", first)
	}
	second := findCase(t, snapshot.Results[1], service.CaseSearch)
	if second.Status != domain.StatusNotImplemented || second.ShortLog != "Not implemented" {
		t.Fatalf("p2 search: %+v", second)
	}
	filters := findCase(t, snapshot.Results[1], service.CaseFilters)
	if filters.Status != domain.StatusFailure || !strings.Contains(filters.ShortLog, "500") {
		t.Fatalf("p2 filters: %+v", filters)
	}
	if got := caseNames(snapshot.Results[1]); !reflect.DeepEqual(got, fullBattery) {
		t.Fatalf("battery should continue past non-fatal cases, got %v", got)
	}
}

func TestHarnessStopOnFailureAbortsOnlyThatBattery(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.film = providerdomain.Film{}
	api.errs["Metadata"] = errors.New("metadata unavailable")
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), time.Second)

	snapshot := runToCompletion(t, h, targets("p1"))
	want := []string{
		service.CaseProviderAPI, service.CaseBaseURL, service.CaseTestFilm,
		service.CaseCatalogItems, service.CaseSearch, service.CaseMetadata,
	}
	if got := caseNames(snapshot.Results[0]); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected cases %v", got)
	}
	if c := findCase(t, snapshot.Results[0], service.CaseTestFilm); c.Status != domain.StatusFailure {
		t.Fatalf("invalid test film should fail: %+v", c)
	}
}

func TestHarnessProviderAPIFailureSkipsOnlyThatProvider(t *testing.T) {
	t.Parallel()
	source := sourceOf(map[string]*fakeAPI{"p2": newFakeAPI()})
	source.errs["p1"] = errors.New("instance crashed")
	h, _ := newHarness(source, time.Second)

	snapshot := runToCompletion(t, h, targets("p1", "p2"))
	if len(snapshot.Results) != 2 {
		t.Fatalf("expected two runs, got %d", len(snapshot.Results))
	}
	failed := snapshot.Results[0]
	if len(failed.Cases) != 1 || failed.Cases[0].Name != service.CaseProviderAPI || failed.Cases[0].Status != domain.StatusFailure {
		t.Fatalf("unexpected cases for failed provider %+v", failed.Cases)
	}
	if got := caseNames(snapshot.Results[1]); !reflect.DeepEqual(got, fullBattery) {
		t.Fatalf("next provider should run fully, got %v", got)
	}
}

func TestHarnessPauseResumeKeepsResults(t *testing.T) {
	t.Parallel()
	reference := newFakeAPI()
	reference.errs["Filters"] = fmt.Errorf("%w: filters", providerdomain.ErrNotImplemented)
	unpausedHarness, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": reference, "p2": newFakeAPI()}), time.Second)
	unpaused := runToCompletion(t, unpausedHarness, targets("p1", "p2"))

	paused := newFakeAPI()
	paused.errs["Filters"] = fmt.Errorf("%w: filters", providerdomain.ErrNotImplemented)
	gate := make(chan struct{})
	paused.gates["BaseURL"] = gate
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": paused, "p2": newFakeAPI()}), 0)
	if err := h.Start(context.Background(), targets("p1", "p2")); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitEntered(t, paused, "BaseURL")
	if err := h.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	close(gate)
	waitFor(t, "base url case to finish", func() bool {
		snapshot := h.Snapshot()
		cases := snapshot.Results[0].Cases
		return len(cases) == 2 && cases[1].Status == domain.StatusSuccess
	})
	time.Sleep(20 * time.Millisecond)
	snapshot := h.Snapshot()
	if snapshot.State != domain.JobPaused || len(snapshot.Results[0].Cases) != 2 {
		t.Fatalf("run advanced while paused: %+v", snapshot)
	}
	if paused.called("TestFilm") != 1 {
		t.Fatalf("only the sample capture should have called TestFilm, got %d", paused.called("TestFilm"))
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	resumed := h.Snapshot()
	if len(resumed.Results) != len(unpaused.Results) {
		t.Fatalf("run count differs: %d vs %d", len(resumed.Results), len(unpaused.Results))
	}
	for i := range unpaused.Results {
		if !reflect.DeepEqual(caseLines(resumed.Results[i]), caseLines(unpaused.Results[i])) {
			t.Fatalf("run %d differs:\n%v\n%v", i, caseLines(resumed.Results[i]), caseLines(unpaused.Results[i]))
		}
	}
}

func TestHarnessStopDiscardsOnlyInFlightCase(t *testing.T) {
	t.Parallel()
	p2 := newFakeAPI()
	p2.gates["Search"] = make(chan struct{})
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": newFakeAPI(), "p2": p2}), 0)
	if err := h.Start(context.Background(), targets("p1", "p2", "p3")); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitEntered(t, p2, "Search")
	if err := h.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	snapshot := h.Snapshot()
	if snapshot.State != domain.JobIdle || !snapshot.Stage.IsIdle() {
		t.Fatalf("expected idle after stop, got %+v", snapshot)
	}
	if len(snapshot.Results) != 2 {
		t.Fatalf("p3 should never start, got %d runs", len(snapshot.Results))
	}
	if got := caseNames(snapshot.Results[0]); !reflect.DeepEqual(got, fullBattery) {
		t.Fatalf("finished provider lost results: %v", got)
	}
	want := []string{
		service.CaseProviderAPI, service.CaseBaseURL, service.CaseTestFilm, service.CaseCatalogs,
		service.CaseFilters, service.CaseCatalogItems,
	}
	if got := caseNames(snapshot.Results[1]); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected partial results %v", got)
	}
	for _, c := range snapshot.Results[1].Cases {
		if c.Status == domain.StatusRunning {
			t.Fatalf("running entry survived stop")
		}
	}
	if err := h.Stop(); !errors.Is(err, domain.ErrJobNotRunning) {
		t.Fatalf("expected not running, got %v", err)
	}
}

func TestHarnessStopWhilePaused(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	gate := make(chan struct{})
	api.gates["Catalogs"] = gate
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), 0)
	if err := h.Start(context.Background(), targets("p1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitEntered(t, api, "Catalogs")
	if err := h.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	close(gate)
	waitFor(t, "catalogs case to finish", func() bool {
		cases := h.Snapshot().Results[0].Cases
		return cases[len(cases)-1].Status != domain.StatusRunning
	})
	if err := h.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	snapshot := h.Snapshot()
	if snapshot.State != domain.JobIdle || len(snapshot.Results[0].Cases) != 4 {
		t.Fatalf("unexpected snapshot after stop %+v", snapshot)
	}
}

func TestHarnessRetestAppendsDisambiguatedRun(t *testing.T) {
	t.Parallel()
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": newFakeAPI(), "p2": newFakeAPI()}), time.Second)
	runToCompletion(t, h, targets("p1", "p2"))
	runToCompletion(t, h, targets("p1"))
	snapshot := runToCompletion(t, h, targets("p1"))

	labels := []string{}
	for _, result := range snapshot.Results {
		labels = append(labels, result.Label)
	}
	want := []string{"Provider p1", "Provider p2", "Provider p1 (2)", "Provider p1 (3)"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("unexpected labels %v", labels)
	}
	if snapshot.Results[0].ID == snapshot.Results[2].ID {
		t.Fatalf("runs share an id")
	}
	if len(snapshot.Results[0].Cases) != len(fullBattery) {
		t.Fatalf("first run was replaced")
	}
}

func TestHarnessStageTracksOneProvider(t *testing.T) {
	t.Parallel()
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": newFakeAPI(), "p2": newFakeAPI()}), time.Second)
	updates, cancel := h.Subscribe(4096)
	runToCompletion(t, h, targets("p1", "p2"))
	cancel()

	seen := map[domain.StageKind]bool{}
	count := 0
	handedOver := false
	var prev domain.Stage
	for snapshot := range updates {
		count++
		seen[snapshot.Stage.Kind] = true
		if snapshot.Stage != prev && prev.Kind == domain.StageDone && prev.Provider == "p1" {
			if snapshot.Stage != (domain.Stage{Kind: domain.StagePropertyChecks, Provider: "p2"}) {
				t.Fatalf("expected Done(p1) to hand over to PropertyChecks(p2), got %+v", snapshot.Stage)
			}
			handedOver = true
		}
		prev = snapshot.Stage
		if snapshot.Stage.IsIdle() != (snapshot.Stage.Provider == "") {
			t.Fatalf("stage/provider mismatch %+v", snapshot.Stage)
		}
		if snapshot.State == domain.JobRunning && snapshot.Stage.IsIdle() {
			t.Fatalf("running with idle stage")
		}
	}
	if count == 0 {
		t.Fatalf("no snapshots published")
	}
	if !handedOver {
		t.Fatalf("never observed the hand-over from p1 to p2")
	}
	for _, kind := range []domain.StageKind{domain.StagePropertyChecks, domain.StageMethodChecks, domain.StageDone, domain.StageIdle} {
		if !seen[kind] {
			t.Fatalf("stage %s never observed", kind)
		}
	}
}

func TestHarnessJobStateTransitions(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	gate := make(chan struct{})
	api.gates["BaseURL"] = gate
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), 0)

	if err := h.Pause(); !errors.Is(err, domain.ErrJobNotRunning) {
		t.Fatalf("pause idle: %v", err)
	}
	if err := h.Resume(); !errors.Is(err, domain.ErrJobNotPaused) {
		t.Fatalf("resume idle: %v", err)
	}
	if err := h.Start(context.Background(), nil); err != nil {
		t.Fatalf("empty start: %v", err)
	}
	if h.Snapshot().State != domain.JobIdle {
		t.Fatalf("empty start should stay idle")
	}
	if err := h.Start(context.Background(), targets("p1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.Start(context.Background(), targets("p1")); !errors.Is(err, domain.ErrJobRunning) {
		t.Fatalf("second start: %v", err)
	}
	if err := h.Resume(); !errors.Is(err, domain.ErrJobNotPaused) {
		t.Fatalf("resume running: %v", err)
	}
	if err := h.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.Pause(); !errors.Is(err, domain.ErrJobNotRunning) {
		t.Fatalf("pause paused: %v", err)
	}
	if err := h.Start(context.Background(), targets("p1")); !errors.Is(err, domain.ErrJobRunning) {
		t.Fatalf("start while paused: %v", err)
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if h.Snapshot().State != domain.JobIdle {
		t.Fatalf("expected idle after completion")
	}
}

func TestHarnessCaseTimeoutAndPanicBecomeFailures(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.gates["BaseURL"] = make(chan struct{})
	api.panics = "Catalogs"
	h, metrics := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), 50*time.Millisecond)

	snapshot := runToCompletion(t, h, targets("p1"))
	base := findCase(t, snapshot.Results[0], service.CaseBaseURL)
	if base.Status != domain.StatusFailure || !strings.Contains(base.ShortLog, "timed out") {
		t.Fatalf("expected timeout failure, got %+v", base)
	}
	catalogs := findCase(t, snapshot.Results[0], service.CaseCatalogs)
	if catalogs.Status != domain.StatusFailure || !strings.Contains(catalogs.ShortLog, "provider exploded") {
		t.Fatalf("expected panic failure, got %+v", catalogs)
	}
	if !strings.Contains(catalogs.FullLog, "goroutine") {
		t.Fatalf("panic full log should carry a stack trace")
	}
	if metrics.statuses[string(domain.StatusFailure)] < 2 {
		t.Fatalf("failures not counted: %v", metrics.statuses)
	}
}

func TestHarnessPrefersWebViewLinks(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.webView = true
	api.errs["Links"] = errors.New("direct extraction should not be used")
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), time.Second)

	snapshot := runToCompletion(t, h, targets("p1"))
	links := findCase(t, snapshot.Results[0], service.CaseLinks)
	if links.Status != domain.StatusSuccess || links.ShortLog != "Extracted 1 links (webview)" {
		t.Fatalf("unexpected links case %+v", links)
	}
	if api.called("Links") != 0 || api.called("LinksViaBrowser") != 1 {
		t.Fatalf("webview variant not used")
	}
}

func TestHarnessStopsWhenStartContextIsCancelled(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.gates["BaseURL"] = make(chan struct{})
	h, _ := newHarness(sourceOf(map[string]*fakeAPI{"p1": api}), 0)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Start(ctx, targets("p1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitEntered(t, api, "BaseURL")
	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := h.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	snapshot := h.Snapshot()
	if snapshot.State != domain.JobIdle || len(snapshot.Results[0].Cases) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}
