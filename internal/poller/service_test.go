package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"autorip/internal/disc"
)

type fakeInventory struct {
	mu          sync.Mutex
	discs       []disc.Record
	detectErr   error
	enrichErr   error
	detectCalls int
	enrichCalls [][]disc.Record

	// When set, Detect signals detectStarted and blocks until detectRelease
	// is closed.
	detectStarted chan struct{}
	detectRelease chan struct{}
}

func (f *fakeInventory) set(records ...disc.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discs = records
}

func (f *fakeInventory) Detect(context.Context) ([]disc.Record, error) {
	f.mu.Lock()
	f.detectCalls++
	started, release := f.detectStarted, f.detectRelease
	f.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return append([]disc.Record(nil), f.discs...), nil
}

func (f *fakeInventory) Enrich(_ context.Context, records []disc.Record) ([]disc.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrichCalls = append(f.enrichCalls, append([]disc.Record(nil), records...))
	if f.enrichErr != nil {
		return nil, f.enrichErr
	}
	out := make([]disc.Record, len(records))
	for i, rec := range records {
		rec.FileInfo = &disc.FileInfo{Name: rec.Title}
		out[i] = rec
	}
	return out, nil
}

func (f *fakeInventory) detects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detectCalls
}

func (f *fakeInventory) enriches() [][]disc.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]disc.Record(nil), f.enrichCalls...)
}

type fakePipeline struct {
	mu      sync.Mutex
	rips    [][]disc.Record
	backups [][]disc.Record
	err     error
	panics  bool
	started chan struct{}
	release chan struct{}
}

func (f *fakePipeline) RunRip(ctx context.Context, records []disc.Record) error {
	f.mu.Lock()
	f.rips = append(f.rips, records)
	f.mu.Unlock()
	return f.run(ctx)
}

func (f *fakePipeline) RunBackup(ctx context.Context, records []disc.Record) error {
	f.mu.Lock()
	f.backups = append(f.backups, records)
	f.mu.Unlock()
	return f.run(ctx)
}

func (f *fakePipeline) run(ctx context.Context) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.panics {
		panic("makemkv exploded")
	}
	return f.err
}

func (f *fakePipeline) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rips), len(f.backups)
}

type eventRecorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *eventRecorder) record(ev StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, ev.State)
}

func (r *eventRecorder) snapshot() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []Run
	finished []Run
}

func (o *recordingObserver) RunStarted(_ context.Context, run Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, run)
}

func (o *recordingObserver) RunFinished(_ context.Context, run Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, run)
}

func (o *recordingObserver) finishedRuns() []Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Run(nil), o.finished...)
}

// finishHook runs fn after each run has been reported finished.
type finishHook func()

func (finishHook) RunStarted(context.Context, Run)    {}
func (h finishHook) RunFinished(context.Context, Run) { h() }

func newTestService(t *testing.T, inv *fakeInventory, pipe *fakePipeline, mutate func(*Options)) *Service {
	t.Helper()
	opts := Options{
		Interval:  time.Hour,
		Mode:      ModeRip,
		Inventory: inv,
		Pipeline:  pipe,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

// runCycle executes one scan cycle synchronously the way a tick would.
func runCycle(t *testing.T, svc *Service) {
	t.Helper()
	if !svc.gate.tryScan() {
		t.Fatal("gate busy")
	}
	defer svc.gate.release()
	svc.scanCycle(context.Background(), "test")
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestNewValidatesOptions(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{}
	cases := []struct {
		name string
		opts Options
	}{
		{"interval", Options{Mode: ModeRip, Inventory: inv, Pipeline: pipe}},
		{"inventory", Options{Interval: time.Second, Mode: ModeRip, Pipeline: pipe}},
		{"pipeline", Options{Interval: time.Second, Mode: ModeRip, Inventory: inv}},
		{"mode", Options{Interval: time.Second, Mode: "encode", Inventory: inv, Pipeline: pipe}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestScanCycleDedupLifecycle(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{}
	svc := newTestService(t, inv, pipe, nil)
	movie := disc.Record{DriveID: "D1", Title: "Movie A"}

	inv.set(movie)
	runCycle(t, svc)
	if rips, _ := pipe.counts(); rips != 1 {
		t.Fatalf("expected first dispatch, got %d rips", rips)
	}
	if got := svc.Tracked(); !reflect.DeepEqual(got, []TrackedDisc{{DriveID: "D1", Title: "Movie A"}}) {
		t.Fatalf("tracked = %v", got)
	}
	if pipe.rips[0][0].FileInfo == nil {
		t.Fatal("expected enriched record to reach the pipeline")
	}

	runCycle(t, svc)
	if rips, _ := pipe.counts(); rips != 1 {
		t.Fatalf("same disc must not be dispatched again, got %d rips", rips)
	}
	if n := len(inv.enriches()); n != 1 {
		t.Fatalf("same disc must not be enriched again, got %d enrich calls", n)
	}

	inv.set()
	runCycle(t, svc)
	if got := svc.Tracked(); len(got) != 0 {
		t.Fatalf("ejection must clear tracker, got %v", got)
	}

	inv.set(movie)
	runCycle(t, svc)
	if rips, _ := pipe.counts(); rips != 2 {
		t.Fatalf("reinserted disc must be dispatched again, got %d rips", rips)
	}
}

func TestScanCycleReconsidersRetitledDrive(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{}
	svc := newTestService(t, inv, pipe, nil)

	inv.set(disc.Record{DriveID: "D", Title: "T1"})
	runCycle(t, svc)
	inv.set(disc.Record{DriveID: "D", Title: "T2"})
	runCycle(t, svc)
	runCycle(t, svc)

	if rips, _ := pipe.counts(); rips != 2 {
		t.Fatalf("expected one dispatch per title, got %d", rips)
	}
	if got := pipe.rips[1][0].Title; got != "T2" {
		t.Fatalf("second dispatch title = %q", got)
	}
}

func TestScanCycleEnrichesOnlyNewDiscs(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{}
	svc := newTestService(t, inv, pipe, nil)

	inv.set(disc.Record{DriveID: "D1", Title: "A"})
	runCycle(t, svc)
	inv.set(disc.Record{DriveID: "D1", Title: "A"}, disc.Record{DriveID: "D2", Title: "B"})
	runCycle(t, svc)

	calls := inv.enriches()
	if len(calls) != 2 {
		t.Fatalf("enrich calls = %d", len(calls))
	}
	if len(calls[1]) != 1 || calls[1][0].DriveID != "D2" {
		t.Fatalf("second enrich batch = %v", calls[1])
	}
}

func TestScanCycleMarksBeforePipelineReturns(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(t, inv, pipe, nil)
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"}, disc.Record{DriveID: "D2", Title: "Show"})

	if !svc.gate.tryScan() {
		t.Fatal("gate busy")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer svc.gate.release()
		svc.scanCycle(context.Background(), "tick")
	}()
	<-pipe.started

	svc.scanCycle(context.Background(), "retrigger")
	if n := len(inv.enriches()); n != 1 {
		t.Fatalf("retriggered cycle re-selected discs: %d enrich calls", n)
	}
	if st := svc.Status(); st.Phase != PhaseProcessing || st.CurrentOperation != "processing" {
		t.Fatalf("status during run = %+v", st)
	}

	close(pipe.release)
	<-done
	if rips, _ := pipe.counts(); rips != 1 {
		t.Fatalf("rips = %d", rips)
	}
}

func TestModeRouting(t *testing.T) {
	for _, mode := range []Mode{ModeRip, ModeBackup} {
		t.Run(string(mode), func(t *testing.T) {
			inv := &fakeInventory{}
			pipe := &fakePipeline{}
			svc := newTestService(t, inv, pipe, func(o *Options) { o.Mode = mode })
			inv.set(disc.Record{DriveID: "D1", Title: "Movie"})
			runCycle(t, svc)

			rips, backups := pipe.counts()
			switch mode {
			case ModeRip:
				if rips != 1 || backups != 0 {
					t.Fatalf("rip mode: rips=%d backups=%d", rips, backups)
				}
			case ModeBackup:
				if rips != 0 || backups != 1 {
					t.Fatalf("backup mode: rips=%d backups=%d", rips, backups)
				}
			}
		})
	}
}

func TestPipelineFailureKeepsPollingAndTracking(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{err: errors.New("read error")}
	obs := &recordingObserver{}
	svc := newTestService(t, inv, pipe, func(o *Options) {
		o.Observer = obs
		o.NewRunID = func() string { return "run-1" }
	})
	events := &eventRecorder{}
	svc.Subscribe(events.record)
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	if !svc.Start(context.Background()) {
		t.Fatal("expected Start to report a change")
	}
	if !svc.Trigger("test") {
		t.Fatal("expected trigger to start a cycle")
	}
	waitFor(t, "run to finish", func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.finished) == 1
	})
	waitFor(t, "gate release", func() bool { return svc.gate.current() == gateFree })

	want := []Phase{PhaseScanning, PhaseProcessing, PhaseScanning}
	if got := events.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	st := svc.Status()
	if !st.Polling || st.Phase != PhaseScanning || st.CurrentOperation != "" {
		t.Fatalf("status after failure = %+v", st)
	}
	if got := svc.Tracked(); len(got) != 1 || got[0].DriveID != "D1" {
		t.Fatalf("failed batch must stay tracked, got %v", got)
	}

	obs.mu.Lock()
	finished := obs.finished[0]
	obs.mu.Unlock()
	if finished.ID != "run-1" || finished.Err == nil || finished.Mode != ModeRip {
		t.Fatalf("finished run = %+v", finished)
	}

	svc.Trigger("again")
	waitFor(t, "second detect", func() bool { return inv.detects() == 2 })
	waitFor(t, "gate release", func() bool { return svc.gate.current() == gateFree })
	if rips, _ := pipe.counts(); rips != 1 {
		t.Fatalf("failed disc must not be retried, got %d rips", rips)
	}
}

func TestPipelinePanicIsContained(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{panics: true}
	obs := &recordingObserver{}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Observer = obs })
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	runCycle(t, svc)

	if len(obs.finished) != 1 || obs.finished[0].Err == nil {
		t.Fatalf("expected panic surfaced as run error, got %+v", obs.finished)
	}
	if !strings.Contains(obs.finished[0].Err.Error(), "makemkv exploded") {
		t.Fatalf("unexpected error: %v", obs.finished[0].Err)
	}
}

func TestTicksDroppedWhileRunActive(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Interval = 5 * time.Millisecond })
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	svc.Start(context.Background())
	<-pipe.started
	detects := inv.detects()
	time.Sleep(50 * time.Millisecond)
	if svc.Trigger("manual") {
		t.Fatal("trigger must be refused while processing")
	}
	if got := inv.detects(); got != detects {
		t.Fatalf("ticks ran %d extra scans during processing", got-detects)
	}

	close(pipe.release)
	waitFor(t, "polling to resume", func() bool { return inv.detects() > detects })
	svc.Stop()
}

func TestTicksDroppedWhileScanActive(t *testing.T) {
	inv := &fakeInventory{detectStarted: make(chan struct{}, 1), detectRelease: make(chan struct{})}
	svc := newTestService(t, inv, &fakePipeline{}, func(o *Options) { o.Interval = 5 * time.Millisecond })

	svc.Start(context.Background())
	<-inv.detectStarted
	time.Sleep(50 * time.Millisecond)
	if svc.Trigger("manual") {
		t.Fatal("trigger must be refused while a scan is in flight")
	}
	if got := inv.detects(); got != 1 {
		t.Fatalf("detect ran %d times while the first scan was blocked", got)
	}
	if st := svc.Status(); st.Phase != PhaseScanning {
		t.Fatalf("phase = %s, want scanning", st.Phase)
	}

	close(inv.detectRelease)
	waitFor(t, "ticks to resume", func() bool { return inv.detects() > 1 })
	svc.Stop()
}

func TestStartStopAreIdempotent(t *testing.T) {
	inv := &fakeInventory{}
	svc := newTestService(t, inv, &fakePipeline{}, nil)
	events := &eventRecorder{}
	svc.Subscribe(events.record)

	if st := svc.Status(); st.Polling || st.Phase != PhaseIdle {
		t.Fatalf("initial status = %+v", st)
	}
	if svc.Stop() {
		t.Fatal("stop while idle must be a no-op")
	}
	if !svc.Start(context.Background()) {
		t.Fatal("first start must succeed")
	}
	if svc.Start(context.Background()) {
		t.Fatal("second start must be a no-op")
	}
	if st := svc.Status(); !st.Polling || st.Phase != PhaseScanning {
		t.Fatalf("running status = %+v", st)
	}
	if !svc.Stop() {
		t.Fatal("stop must succeed while polling")
	}
	if svc.Trigger("late") {
		t.Fatal("trigger after stop must be ignored")
	}

	want := []Phase{PhaseScanning, PhaseIdle}
	if got := events.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if inv.detects() != 0 {
		t.Fatalf("no cycle should have run, got %d detects", inv.detects())
	}
}

func TestStopDoesNotInterruptActiveRun(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	obs := &recordingObserver{}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Observer = obs })
	events := &eventRecorder{}
	svc.Subscribe(events.record)
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	svc.Start(context.Background())
	svc.Trigger("test")
	<-pipe.started
	svc.Stop()

	close(pipe.release)
	waitFor(t, "gate release", func() bool { return svc.gate.current() == gateFree })
	if len(obs.finished) != 1 || obs.finished[0].Err != nil {
		t.Fatalf("run should complete normally, got %+v", obs.finished)
	}
	want := []Phase{PhaseScanning, PhaseProcessing, PhaseIdle}
	if got := events.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestParentContextCancelStopsPolling(t *testing.T) {
	svc := newTestService(t, &fakeInventory{}, &fakePipeline{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	cancel()
	waitFor(t, "polling to stop", func() bool { return !svc.Status().Polling })
	if !svc.Start(context.Background()) {
		t.Fatal("expected restart after context end")
	}
}

func TestScanErrorsAbortCycleWithoutTracking(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inv := &fakeInventory{}
	pipe := &fakePipeline{}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Logger = logger })
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	inv.detectErr = fmt.Errorf("wrapped: %w", disc.ErrBackendUnavailable)
	runCycle(t, svc)
	if strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("unavailable backend must not warn: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "disc tooling unavailable") {
		t.Fatalf("expected debug entry, got %s", buf.String())
	}

	inv.detectErr = nil
	inv.enrichErr = errors.New("drive busy")
	runCycle(t, svc)
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected warning for transient error: %s", buf.String())
	}
	if got := svc.Tracked(); len(got) != 0 {
		t.Fatalf("failed scan must not mark discs, got %v", got)
	}

	inv.enrichErr = nil
	runCycle(t, svc)
	if rips, _ := pipe.counts(); rips != 1 {
		t.Fatalf("next cycle should retry from scratch, got %d rips", rips)
	}
}

func TestShutdownCancelsWorkAfterGrace(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	obs := &recordingObserver{}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Observer = obs })
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	svc.Start(context.Background())
	svc.Trigger("test")
	<-pipe.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown error = %v", err)
	}
	if len(obs.finished) != 1 || !errors.Is(obs.finished[0].Err, context.Canceled) {
		t.Fatalf("expected cancelled run, got %+v", obs.finished)
	}
}

func TestStopDuringRunWrapUpEndsOnIdle(t *testing.T) {
	inv := &fakeInventory{}
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})
	var (
		svc      *Service
		finished atomic.Bool
		stopped  atomic.Bool
	)
	svc = newTestService(t, inv, &fakePipeline{}, func(o *Options) {
		o.Observer = finishHook(func() { finished.Store(true) })
		// The first clock read after RunFinished is the post-run phase
		// publish; stopping there races the scanning event against idle.
		o.Clock = func() time.Time {
			if finished.Load() && stopped.CompareAndSwap(false, true) {
				svc.Stop()
			}
			return time.Now()
		}
	})
	events := &eventRecorder{}
	svc.Subscribe(events.record)

	svc.Start(context.Background())
	if !svc.Trigger("test") {
		t.Fatal("trigger refused")
	}
	waitFor(t, "stop during wrap-up", stopped.Load)
	waitFor(t, "gate release", func() bool { return svc.gate.current() == gateFree })

	want := []Phase{PhaseScanning, PhaseProcessing, PhaseIdle}
	if got := events.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if svc.Status().Polling {
		t.Fatal("service should be stopped")
	}
}

func TestRestartDuringRunPublishesProcessing(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(t, inv, pipe, nil)
	events := &eventRecorder{}
	svc.Subscribe(events.record)
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	svc.Start(context.Background())
	svc.Trigger("test")
	<-pipe.started
	svc.Stop()
	svc.Start(context.Background())
	if st := svc.Status(); st.Phase != PhaseProcessing {
		t.Fatalf("phase = %s, want processing", st.Phase)
	}

	close(pipe.release)
	waitFor(t, "gate release", func() bool { return svc.gate.current() == gateFree })
	want := []Phase{PhaseScanning, PhaseProcessing, PhaseIdle, PhaseProcessing, PhaseScanning}
	if got := events.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	svc.Stop()
}

func TestStartAfterAbortedShutdownRunsWithLiveContext(t *testing.T) {
	inv := &fakeInventory{}
	pipe := &fakePipeline{started: make(chan struct{}, 1), release: make(chan struct{})}
	obs := &recordingObserver{}
	svc := newTestService(t, inv, pipe, func(o *Options) { o.Observer = obs })
	inv.set(disc.Record{DriveID: "D1", Title: "Movie"})

	svc.Start(context.Background())
	svc.Trigger("test")
	<-pipe.started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown error = %v", err)
	}

	inv.set(disc.Record{DriveID: "D1", Title: "Sequel"})
	close(pipe.release)
	if !svc.Start(context.Background()) {
		t.Fatal("start after shutdown must succeed")
	}
	if !svc.Trigger("test") {
		t.Fatal("trigger refused after restart")
	}
	<-pipe.started
	waitFor(t, "second run", func() bool { return len(obs.finishedRuns()) == 2 })
	if err := obs.finishedRuns()[1].Err; err != nil {
		t.Fatalf("run after restart used a cancelled context: %v", err)
	}
}
