package graph_test

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/filters"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/interceptors"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/internal/media/synthetic"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memSettings struct {
	width, height, bpp int
	ok                 bool
	loadErr            error
	saves              int
}

func (s *memSettings) Load() (int, int, int, bool, error) {
	return s.width, s.height, s.bpp, s.ok, s.loadErr
}

func (s *memSettings) Save(width, height, bpp int) error {
	s.width, s.height, s.bpp, s.ok = width, height, bpp, true
	s.saves++
	return nil
}

type countingInterceptor struct {
	frames atomic.Int64
}

func (c *countingInterceptor) Category() interceptors.Category { return interceptors.Preprocessing }

func (c *countingInterceptor) Preprocess(frame.View) error {
	c.frames.Add(1)
	return nil
}

type fixture struct {
	engine   *synthetic.Engine
	chain    *filters.Chain
	registry *interceptors.Registry
	ctrl     *graph.Controller
	notified []error
}

func newFixture(t *testing.T, opts synthetic.Options, settings graph.Settings) *fixture {
	t.Helper()
	opts.Logger = testLogger()

	f := &fixture{
		engine:   synthetic.New(opts),
		registry: interceptors.NewRegistry(),
	}
	f.chain = filters.NewChain(f.registry, nil, testLogger())
	if err := f.chain.RegisterStageType(filters.Preprocessing); err != nil {
		t.Fatal(err)
	}
	f.ctrl = graph.NewController(graph.Options{
		Engine:   f.engine,
		Chain:    f.chain,
		Settings: settings,
		Notifier: graph.NotifierFunc(func(err error) { f.notified = append(f.notified, err) }),
		Logger:   testLogger(),
	})
	t.Cleanup(func() { _ = f.ctrl.Teardown() })
	return f
}

func devices() (media.Device, media.Device) {
	d := synthetic.DefaultDevices()
	return d[0], d[1]
}

func TestInitialState(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	if got := f.ctrl.State(); got != graph.StateUninitialized {
		t.Errorf("expected uninitialized, got %s", got)
	}
	if _, bound := f.ctrl.Device(); bound {
		t.Error("expected no bound device")
	}
}

func TestSelectDeviceRuns(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatalf("SelectDevice failed: %v", err)
	}

	snap := f.ctrl.Snapshot()
	if snap.State != graph.StateRunning {
		t.Errorf("expected running, got %s", snap.State)
	}
	if !snap.Bound || snap.Device.ID != a.ID {
		t.Errorf("expected device %s bound, got %+v", a.ID, snap.Device)
	}
	if snap.BuildID == "" {
		t.Error("expected a build id")
	}
	want := []string{media.SourceStageName, string(filters.Preprocessing), "renderer"}
	if len(snap.Stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, snap.Stages)
	}
	for i := range want {
		if snap.Stages[i] != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i, want[i], snap.Stages[i])
		}
	}
	if !f.engine.LastGraph().Running() {
		t.Error("expected graph delivery running")
	}
}

func TestSelectDeviceReleasesPreviousGraph(t *testing.T) {
	_, b := devices()
	bFormat := frame.Format{Width: 800, Height: 600, BitsPerPixel: 24, Native: "RGB3"}
	f := newFixture(t, synthetic.Options{
		Capabilities: map[string][]frame.Format{b.ID: {bFormat}},
	}, nil)
	a, _ := devices()

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	first := f.engine.LastGraph()

	if err := f.ctrl.SelectDevice(b); err != nil {
		t.Fatal(err)
	}
	second := f.engine.LastGraph()

	if first == second {
		t.Fatal("expected a new graph for device B")
	}
	if !first.Released() {
		t.Error("graph of device A was not released")
	}
	if live := f.engine.LiveStages(); live != len(second.StageNames()) {
		t.Errorf("expected only B's %d stages live, got %d", len(second.StageNames()), live)
	}
	if got := f.ctrl.State(); got != graph.StateRunning {
		t.Errorf("expected running, got %s", got)
	}
	if got := f.ctrl.Format(); got != bFormat {
		t.Errorf("expected B's format %s, got %s", bFormat, got)
	}
}

func TestNegotiatePersistedExactMatch(t *testing.T) {
	caps := []frame.Format{
		{Width: 320, Height: 240, BitsPerPixel: 24, Native: "RGB3"},
		{Width: 640, Height: 480, BitsPerPixel: 16, Native: "YUYV"},
		{Width: 640, Height: 480, BitsPerPixel: 24, Native: "RGB3"},
		{Width: 640, Height: 480, BitsPerPixel: 24, Native: "BGR3"},
	}
	a, _ := devices()
	settings := &memSettings{width: 640, height: 480, bpp: 24, ok: true}
	f := newFixture(t, synthetic.Options{
		Capabilities: map[string][]frame.Format{a.ID: caps},
	}, settings)

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}

	if got := f.ctrl.Format(); got != caps[2] {
		t.Errorf("expected capability at index 2 (%s %s), got %s %s", caps[2], caps[2].Native, got, got.Native)
	}
	if calls := f.engine.ChooserCalls(); calls != 0 {
		t.Errorf("interactive selection should not run, ran %d times", calls)
	}
	if settings.saves != 1 {
		t.Errorf("expected one save after negotiation, got %d", settings.saves)
	}
}

func TestNegotiateInteractiveFallback(t *testing.T) {
	chosen := synthetic.DefaultCapabilities()[3]
	settings := &memSettings{width: 1920, height: 1080, bpp: 24, ok: true}
	f := newFixture(t, synthetic.Options{
		Chooser: func(_ frame.Format, caps []frame.Format) (frame.Format, bool, error) {
			return caps[3], true, nil
		},
	}, settings)
	a, _ := devices()

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	if f.engine.ChooserCalls() != 1 {
		t.Errorf("expected one chooser call, got %d", f.engine.ChooserCalls())
	}
	if got := f.ctrl.Format(); got != chosen {
		t.Errorf("expected %s, got %s", chosen, got)
	}
	if settings.width != chosen.Width || settings.height != chosen.Height || settings.bpp != chosen.BitsPerPixel {
		t.Errorf("chosen format not persisted: %+v", settings)
	}
}

func TestNegotiateCancelledKeepsCurrent(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	if got, want := f.ctrl.Format(), synthetic.DefaultCapabilities()[0]; got != want {
		t.Errorf("expected current format %s, got %s", want, got)
	}
}

func planarFirstCapabilities() []frame.Format {
	return []frame.Format{
		{Width: 640, Height: 480, BitsPerPixel: 12, Native: "NV12"},
		{Width: 640, Height: 480, BitsPerPixel: 24, Native: "RGB3"},
	}
}

func TestNegotiateSkipsPlanarFormats(t *testing.T) {
	a, _ := devices()
	var offered []frame.Format
	f := newFixture(t, synthetic.Options{
		Capabilities: map[string][]frame.Format{a.ID: planarFirstCapabilities()},
		Chooser: func(_ frame.Format, caps []frame.Format) (frame.Format, bool, error) {
			offered = caps
			return frame.Format{}, false, nil
		},
	}, nil)

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatalf("SelectDevice failed: %v", err)
	}
	if len(offered) != 1 || offered[0].Native != "RGB3" {
		t.Errorf("expected only the packed format offered, got %v", offered)
	}
	if got := f.ctrl.Format(); got.Native != "RGB3" {
		t.Errorf("expected RGB3 in place of the planar default, got %s %s", got, got.Native)
	}
	if f.ctrl.State() != graph.StateRunning || len(f.notified) != 0 {
		t.Errorf("expected running without notifications, got %s %v", f.ctrl.State(), f.notified)
	}

	caps, err := f.ctrl.Capabilities()
	if err != nil {
		t.Fatal(err)
	}
	if len(caps) != 1 {
		t.Errorf("expected planar capabilities hidden, got %v", caps)
	}
}

func TestNegotiateWithoutPackedFormat(t *testing.T) {
	a, _ := devices()
	f := newFixture(t, synthetic.Options{
		Capabilities: map[string][]frame.Format{a.ID: planarFirstCapabilities()[:1]},
	}, nil)

	err := f.ctrl.SelectDevice(a)
	if !errors.Is(err, graph.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if f.ctrl.State() != graph.StateStopped {
		t.Errorf("expected stopped, got %s", f.ctrl.State())
	}
}

func TestApplyFormatRejectsPlanar(t *testing.T) {
	a, _ := devices()
	f := newFixture(t, synthetic.Options{
		Capabilities: map[string][]frame.Format{a.ID: planarFirstCapabilities()},
	}, nil)
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	buildID := f.ctrl.Snapshot().BuildID

	err := f.ctrl.ApplyFormat(frame.Format{Width: 640, Height: 480, BitsPerPixel: 12})
	if !errors.Is(err, graph.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if f.ctrl.State() != graph.StateRunning || f.ctrl.Snapshot().BuildID != buildID {
		t.Error("planar format must leave the running graph untouched")
	}
}

func TestSelectSameDeviceReappliesFormat(t *testing.T) {
	calls := 0
	f := newFixture(t, synthetic.Options{
		Chooser: func(_ frame.Format, caps []frame.Format) (frame.Format, bool, error) {
			calls++
			return caps[4], true, nil
		},
	}, nil)
	a, _ := devices()

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected active format to be reapplied, chooser ran %d times", calls)
	}
	if got := f.ctrl.Format(); got != synthetic.DefaultCapabilities()[4] {
		t.Errorf("unexpected format %s", got)
	}
}

func TestSelectDeviceBindFailure(t *testing.T) {
	a, b := devices()
	f := newFixture(t, synthetic.Options{
		BindErrors: map[string]error{b.ID: errors.New("device busy")},
	}, nil)

	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}

	err := f.ctrl.SelectDevice(b)
	if !errors.Is(err, graph.ErrSetupFailed) {
		t.Fatalf("expected ErrSetupFailed, got %v", err)
	}
	if got := f.ctrl.State(); got != graph.StateStopped {
		t.Errorf("expected stopped, got %s", got)
	}
	if _, bound := f.ctrl.Device(); bound {
		t.Error("expected no device bound after setup failure")
	}
	if len(f.notified) != 1 {
		t.Errorf("expected exactly one notification, got %d", len(f.notified))
	}
	if live := f.engine.LiveStages(); live != 0 {
		t.Errorf("expected no live stages after failure, got %d", live)
	}
	for _, g := range f.engine.Graphs() {
		if !g.Released() {
			t.Errorf("graph %d left unreleased", g.ID())
		}
	}
}

func TestPreviewToggleDoesNotRebuild(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	counter := &countingInterceptor{}
	if err := f.registry.Register(counter); err != nil {
		t.Fatal(err)
	}
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	g := f.engine.LastGraph()
	created := f.engine.StagesCreated()
	buildID := f.ctrl.Snapshot().BuildID

	if err := f.ctrl.SetPreviewActive(false); err != nil {
		t.Fatal(err)
	}
	if got := f.ctrl.State(); got != graph.StateStopped {
		t.Errorf("expected stopped, got %s", got)
	}
	if err := g.Pump(1); !errors.Is(err, synthetic.ErrNotRunning) {
		t.Errorf("expected delivery stopped, got %v", err)
	}

	if err := f.ctrl.SetPreviewActive(true); err != nil {
		t.Fatal(err)
	}
	if got := f.ctrl.State(); got != graph.StateRunning {
		t.Errorf("expected running, got %s", got)
	}
	if f.engine.StagesCreated() != created {
		t.Errorf("expected no new stages, created %d more", f.engine.StagesCreated()-created)
	}
	if len(f.engine.Graphs()) != 1 {
		t.Errorf("expected the same graph, have %d", len(f.engine.Graphs()))
	}
	if f.ctrl.Snapshot().BuildID != buildID {
		t.Error("build id changed on resume")
	}

	if err := g.Pump(3); err != nil {
		t.Fatalf("delivery did not resume: %v", err)
	}
	if got := counter.frames.Load(); got != 3 {
		t.Errorf("expected 3 frames through the interceptor, got %d", got)
	}
}

func TestPreviewActiveWithoutDevice(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	if err := f.ctrl.SetPreviewActive(true); !errors.Is(err, graph.ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
	if err := f.ctrl.SetPreviewActive(false); err != nil {
		t.Errorf("pausing an idle controller should be a no-op, got %v", err)
	}
}

func TestChangeFormatKeepsSource(t *testing.T) {
	pick := -1
	f := newFixture(t, synthetic.Options{
		Chooser: func(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
			if pick < 0 {
				return current, false, nil
			}
			return caps[pick], true, nil
		},
	}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	g := f.engine.LastGraph()
	src, _ := g.FindStage(media.SourceStageName)
	oldStage, _ := g.FindStage(string(filters.Preprocessing))
	oldBuild := f.ctrl.Snapshot().BuildID

	pick = 3
	if err := f.ctrl.ChangeFormat(); err != nil {
		t.Fatalf("ChangeFormat failed: %v", err)
	}

	if len(f.engine.Graphs()) != 1 {
		t.Fatal("format change must not create a new graph")
	}
	if s, _ := g.FindStage(media.SourceStageName); s != src {
		t.Error("source stage was re-acquired")
	}
	if s, _ := g.FindStage(string(filters.Preprocessing)); s == oldStage {
		t.Error("processing stage was not rebuilt")
	}
	want := synthetic.DefaultCapabilities()[3]
	if got := f.ctrl.Format(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	height, stride := f.chain.Stages()[0].Geometry()
	if height != want.Height || stride != want.Stride() {
		t.Errorf("expected geometry %dx%d, got %dx%d", want.Height, want.Stride(), height, stride)
	}
	if f.ctrl.State() != graph.StateRunning {
		t.Errorf("expected running, got %s", f.ctrl.State())
	}
	if f.ctrl.Snapshot().BuildID == oldBuild {
		t.Error("expected a new build id")
	}
	if live := f.engine.LiveStages(); live != 3 {
		t.Errorf("expected 3 live stages, got %d", live)
	}
}

func TestRebuildWithMutationFailure(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	g := f.engine.LastGraph()

	boom := errors.New("mutation failed")
	err := f.ctrl.RebuildWithMutation(func(*graph.Rebuild) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if got := f.ctrl.State(); got != graph.StateStopped {
		t.Errorf("expected stopped, got %s", got)
	}
	if !g.Released() {
		t.Error("graph should be torn down after a failed rebuild")
	}
	if dev, bound := f.ctrl.Device(); !bound || dev.ID != a.ID {
		t.Error("device should stay bound after a failed rebuild")
	}
	if len(f.notified) != 0 {
		t.Errorf("rebuild failures are not setup failures, got %d notifications", len(f.notified))
	}

	// Resuming rebuilds a graph for the bound device.
	if err := f.ctrl.SetPreviewActive(true); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if f.ctrl.State() != graph.StateRunning {
		t.Errorf("expected running, got %s", f.ctrl.State())
	}
}

func TestRebuildWithMutationRegistersStage(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}

	err := f.ctrl.RebuildWithMutation(func(r *graph.Rebuild) error {
		if len(r.Graph().Stages()) != 1 {
			t.Errorf("expected only the source during mutation, got %d stages", len(r.Graph().Stages()))
		}
		if r.Source().Name() != media.SourceStageName {
			t.Errorf("unexpected source %s", r.Source().Name())
		}
		return r.Chain().RegisterStageType(filters.Preprocessing)
	})
	if !errors.Is(err, filters.ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}
}

func TestRebuildWithoutGraph(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	if err := f.ctrl.RebuildWithMutation(nil); !errors.Is(err, graph.ErrNoGraph) {
		t.Errorf("expected ErrNoGraph, got %v", err)
	}
	if err := f.ctrl.ChangeFormat(); !errors.Is(err, graph.ErrNoGraph) {
		t.Errorf("expected ErrNoGraph, got %v", err)
	}
}

func TestApplyFormat(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	buildID := f.ctrl.Snapshot().BuildID

	err := f.ctrl.ApplyFormat(frame.Format{Width: 1920, Height: 1080, BitsPerPixel: 24})
	if !errors.Is(err, graph.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if f.ctrl.State() != graph.StateRunning || f.ctrl.Snapshot().BuildID != buildID {
		t.Error("rejected format must leave the running graph untouched")
	}

	if err := f.ctrl.ApplyFormat(frame.Format{Width: 1280, Height: 720, BitsPerPixel: 32}); err != nil {
		t.Fatalf("ApplyFormat failed: %v", err)
	}
	if got := f.ctrl.Format(); got.Native != "BGR4" {
		t.Errorf("expected BGR4 capability, got %s %s", got, got.Native)
	}
}

func TestResize(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	geom := frame.Geometry{X: 10, Y: 20, Width: 320, Height: 240}

	if err := f.ctrl.Resize(geom); err != nil {
		t.Fatalf("Resize before build failed: %v", err)
	}
	if f.ctrl.State() != graph.StateUninitialized {
		t.Error("Resize must not change state")
	}

	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	win := f.engine.LastGraph().PreviewWindow()
	if win.Geometry() != geom {
		t.Errorf("expected remembered geometry %+v, got %+v", geom, win.Geometry())
	}

	bigger := frame.Geometry{Width: 640, Height: 480}
	if err := f.ctrl.Resize(bigger); err != nil {
		t.Fatal(err)
	}
	if win.Geometry() != bigger {
		t.Errorf("expected %+v, got %+v", bigger, win.Geometry())
	}
	if f.ctrl.State() != graph.StateRunning {
		t.Error("Resize must not change state")
	}
}

func TestResetAndTeardown(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	win := f.engine.LastGraph().PreviewWindow()

	if err := f.ctrl.ResetDevice(); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.State() != graph.StateStopped {
		t.Errorf("expected stopped, got %s", f.ctrl.State())
	}
	if _, bound := f.ctrl.Device(); bound {
		t.Error("expected no device after reset")
	}
	if !win.Released() {
		t.Error("preview window not released")
	}
	if f.engine.LiveStages() != 0 {
		t.Errorf("expected no live stages, got %d", f.engine.LiveStages())
	}

	for range 2 {
		if err := f.ctrl.Teardown(); err != nil {
			t.Fatalf("Teardown failed: %v", err)
		}
		if f.ctrl.State() != graph.StateUninitialized {
			t.Errorf("expected uninitialized, got %s", f.ctrl.State())
		}
	}
}

func TestHandleGraphEvents(t *testing.T) {
	f := newFixture(t, synthetic.Options{}, nil)
	a, _ := devices()
	if err := f.ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}
	g := f.engine.LastGraph()

	g.PostEvent(media.EventStateChange, "playing")
	g.PostEvent(media.EventOther, "latency")
	if err := f.ctrl.HandleGraphEvents(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if f.engine.EventsReleased() != 2 {
		t.Errorf("expected 2 released events, got %d", f.engine.EventsReleased())
	}
	if f.ctrl.State() != graph.StateRunning {
		t.Error("informational events must not change state")
	}

	g.PostEvent(media.EventDeviceLost, "unplugged")
	g.PostEvent(media.EventOther, "after")
	err := f.ctrl.HandleGraphEvents()
	if !errors.Is(err, graph.ErrGraphFault) {
		t.Fatalf("expected ErrGraphFault, got %v", err)
	}
	if f.engine.EventsReleased() != 4 {
		t.Errorf("every drained event must be released, got %d", f.engine.EventsReleased())
	}
	if f.ctrl.State() != graph.StateStopped {
		t.Errorf("expected stopped, got %s", f.ctrl.State())
	}
	if !g.Released() {
		t.Error("graph should be torn down after device loss")
	}
	if _, bound := f.ctrl.Device(); !bound {
		t.Error("device should stay bound")
	}
}

func TestStateEventsPublished(t *testing.T) {
	bus := events.New()
	received := make(chan events.PipelineStateChangedEvent, 8)
	unsub := bus.Subscribe(func(e events.PipelineStateChangedEvent) { received <- e })
	defer unsub()

	engine := synthetic.New(synthetic.Options{Logger: testLogger()})
	chain := filters.NewChain(interceptors.NewRegistry(), nil, testLogger())
	ctrl := graph.NewController(graph.Options{
		Engine:   engine,
		Chain:    chain,
		EventBus: bus,
		Logger:   testLogger(),
	})
	defer ctrl.Teardown()

	a, _ := devices()
	if err := ctrl.SelectDevice(a); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-received:
		if e.To != string(graph.StateRunning) || e.From != string(graph.StateUninitialized) {
			t.Errorf("unexpected transition %s -> %s", e.From, e.To)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for state event")
	}
}
