package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) component.Health { return m.health }

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() component.Description {
	return component.Description{Name: "Run Store", Type: "database", Details: "sqlite flowkit.db"}
}

func (d *describedComponent) Routes() []component.Route {
	return []component.Route{{Method: "POST", Path: "/api/execute", Handler: "Handler.Execute"}}
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "flowkit", Version: "1.0.0"}}
	opts = append([]Option{WithLogger(logger.NewNop()), WithSummaryOutput(io.Discard)}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "flowkit" || app.Version != "1.0.0" {
		t.Errorf("name/version = %s/%s", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied, environment = %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != defaultGracefulTimeout {
		t.Errorf("timeout = %v", app.gracefulTimeout)
	}
}

func TestNewAppBuildsLoggerFromConfig(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "flowkit"}}
	app, err := NewApp(cfg, WithSummaryOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if app.Logger == nil {
		t.Fatal("logger not built")
	}
}

func TestNewAppValidation(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Fatal("missing name should fail validation")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(30*time.Second))
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("timeout = %v", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(healthy("db")); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(healthy("db")); err == nil {
		t.Fatal("duplicate should fail")
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Fatalf("empty registry: %v", err)
	}
	app.RegisterComponent(healthy("db"))
	app.RegisterComponent(&mockComponent{name: "redis", health: component.Health{Name: "redis", Status: component.StatusUnhealthy, Message: "ping timeout"}})

	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis=unhealthy(ping timeout)") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app := newTestApp(t)
	db := healthy("db")
	app.RegisterComponent(db)

	var order []string
	app.OnStart(func(context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		order = append(order, "configure")
		return a.RegisterComponent(healthy("late"))
	})
	app.OnReady(func(context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "stop"); return nil })

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	want := []string{"start", "configure", "ready", "task", "stop"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if !db.started || !db.stopped {
		t.Errorf("db started=%v stopped=%v", db.started, db.stopped)
	}
	late := app.Components.Get("late").(*mockComponent)
	if !late.started || !late.stopped {
		t.Errorf("component registered during configure: started=%v stopped=%v", late.started, late.stopped)
	}
}

func TestRunTaskErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(a *App[*testConfig])
		task  func(context.Context) error
	}{
		{"task", func(*App[*testConfig]) {}, func(context.Context) error { return boom }},
		{"start hook", func(a *App[*testConfig]) { a.OnStart(func(context.Context) error { return boom }) }, nil},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(context.Context, *App[*testConfig]) error { return boom })
		}, nil},
		{"ready hook", func(a *App[*testConfig]) { a.OnReady(func(context.Context) error { return boom }) }, nil},
		{"stop hook", func(a *App[*testConfig]) { a.OnStop(func(context.Context) error { return boom }) }, nil},
		{"component start", func(a *App[*testConfig]) { a.RegisterComponent(&mockComponent{name: "db", startErr: boom}) }, nil},
		{"component stop", func(a *App[*testConfig]) { a.RegisterComponent(&mockComponent{name: "db", stopErr: boom}) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			tt.setup(app)
			task := tt.task
			if task == nil {
				task = func(context.Context) error { return nil }
			}
			if err := app.RunTask(context.Background(), task); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want boom", err)
			}
		})
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	err := app.RunTask(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	db := healthy("db")
	app.RegisterComponent(db)

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !db.stopped {
		t.Fatal("db should be stopped after Run returns")
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	app := newTestApp(t, WithSummaryOutput(&buf))
	app.RegisterComponent(&describedComponent{mockComponent: *healthy("runstore")})
	app.RegisterComponent(&mockComponent{name: "redis", health: component.Health{Name: "redis", Status: component.StatusDegraded, Message: "slow"}})

	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"flowkit 1.0.0 started",
		"Run Store [database]: sqlite flowkit.db",
		"POST    /api/execute -> Handler.Execute",
		"redis degraded: slow",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
