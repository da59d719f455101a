package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/hostfunc"
	"github.com/caffeineduck/funhost/loader"
)

type testGuest struct{}

func (testGuest) Name() string { return "guest" }
func (testGuest) Args() []string { return []string{"guest"} }
func (testGuest) Env() map[string]string { return map[string]string{"GUEST": "1"} }

// guestModule returns the compiled test guest, skipping when it has not
// been built with go generate.
func guestModule(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "guest.wasm"))
	if err != nil {
		t.Skip("testdata/guest.wasm not built; run go generate ./engine/wasm")
	}
	return data
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(context.Background(), guestModule(t), testGuest{}, nil, opts...)
	if err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func importRunner(t *testing.T, e *Engine) engine.Evaluator {
	t.Helper()
	ctx := context.Background()
	if err := e.Filesystem().WriteFile("/app/funlang_runner.py", []byte("# runner")); err != nil {
		t.Fatal(err)
	}
	if err := e.AddSearchPath(ctx, "/app"); err != nil {
		t.Fatalf("add search path: %v", err)
	}
	ev, err := e.Import(ctx, "funlang_runner", "eval_funlang")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return ev
}

func hostValue(t *testing.T, v engine.Value) map[string]any {
	t.Helper()
	m, err := v.HostValue()
	if err != nil {
		t.Fatalf("host value: %v", err)
	}
	return m
}

func TestEngineEvaluate(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	v, err := ev.Evaluate(context.Background(), "print(1)", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	m := hostValue(t, v)
	if m["stdout"] != "print(1)\n" || m["result"] != nil || m["error"] != nil {
		t.Errorf("unexpected value %v", m)
	}
}

func TestEngineReadsStagedConfig(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)
	e.Filesystem().WriteFile("/app/configs/turkish.json", []byte(`{"keywords":{}}`))

	v, err := ev.Evaluate(context.Background(), "x", "/app/configs/turkish.json")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m := hostValue(t, v); m["result"] != `{"keywords":{}}` {
		t.Errorf("expected staged config contents, got %v", m["result"])
	}

	v, err = ev.Evaluate(context.Background(), "x", "/app/configs/missing.json")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m := hostValue(t, v); !strings.Contains(m["error"].(string), "FileNotFoundError") {
		t.Errorf("expected missing config error, got %v", m)
	}
}

func TestEngineImportMissingModule(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddSearchPath(context.Background(), "/app"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Import(context.Background(), "funlang_runner", "eval_funlang")
	var guestErr *GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("expected GuestError, got %v", err)
	}
	if guestErr.Op != "import" || !strings.Contains(guestErr.Message, "ModuleNotFoundError") {
		t.Errorf("unexpected guest error %+v", guestErr)
	}
}

func TestEngineSearchPathIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for range 3 {
		if err := e.AddSearchPath(ctx, "/app"); err != nil {
			t.Fatal(err)
		}
	}
	e.AddSearchPath(ctx, "/lib")

	if got := e.SearchPaths(); !reflect.DeepEqual(got, []string{"/lib", "/app"}) {
		t.Errorf("unexpected search paths %v", got)
	}
}

func TestEngineGuestErrorKeepsSession(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	if _, err := ev.Evaluate(context.Background(), "crash", ""); err == nil || !strings.Contains(err.Error(), "guest crashed") {
		t.Fatalf("expected guest error, got %v", err)
	}
	if _, err := ev.Evaluate(context.Background(), "again", ""); err != nil {
		t.Errorf("session should survive a guest error: %v", err)
	}
}

func TestEngineMalformedValue(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	v, err := ev.Evaluate(context.Background(), "wrong", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := v.HostValue(); err == nil {
		t.Error("expected non-object value to fail conversion")
	}
}

func TestEngineStrayOutput(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	v, err := ev.Evaluate(context.Background(), "noise", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m := hostValue(t, v); m["stdout"] != "" {
		t.Errorf("stray output must not leak into the value, got %v", m)
	}
}

func TestEngineHostCalls(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("answer", func(ctx context.Context, args map[string]any) (any, error) {
		return "42", nil
	})
	e := newTestEngine(t, WithRegistry(registry))
	ev := importRunner(t, e)

	tests := []struct {
		fn   string
		want string
	}{
		{"answer", "42"},
		{"log", "ok"},
		{"nope", "error: unknown function: nope"},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			v, err := ev.Evaluate(context.Background(), "call "+tt.fn, "")
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if m := hostValue(t, v); m["result"] != tt.want {
				t.Errorf("expected %q, got %v", tt.want, m["result"])
			}
		})
	}
}

func TestEngineGuestExit(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	_, err := ev.Evaluate(context.Background(), "exit", "")
	if !errors.Is(err, ErrGuestExited) {
		t.Fatalf("expected ErrGuestExited, got %v", err)
	}
	if _, err := ev.Evaluate(context.Background(), "x", ""); !errors.Is(err, ErrGuestExited) {
		t.Errorf("expected later commands to fail with ErrGuestExited, got %v", err)
	}
}

func TestEngineClose(t *testing.T) {
	e := newTestEngine(t)
	ev := importRunner(t, e)

	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := ev.Evaluate(context.Background(), "x", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestNewRejectsInvalidModule(t *testing.T) {
	_, err := New(context.Background(), []byte("not wasm"), testGuest{}, nil)
	if err == nil || !strings.Contains(err.Error(), "compile guest") {
		t.Errorf("expected compile error, got %v", err)
	}
}

func TestLoaderFetchesAsset(t *testing.T) {
	guestModule(t)
	ldr, err := loader.New("testdata")
	if err != nil {
		t.Fatal(err)
	}

	load := NewLoader(ldr, testGuest{}, WithStartTimeout(10*time.Second))
	eng, err := load(context.Background(), engine.Options{AssetURL: "guest.wasm"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer eng.Close(context.Background())

	if _, ok := eng.(*Engine); !ok {
		t.Errorf("expected *Engine, got %T", eng)
	}
}

func TestLoaderErrors(t *testing.T) {
	ldr, err := loader.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	load := NewLoader(ldr, testGuest{})

	if _, err := load(context.Background(), engine.Options{}); err == nil {
		t.Error("expected error without asset")
	}

	_, err = load(context.Background(), engine.Options{AssetURL: "missing.wasm"})
	var loadErr *loader.LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("expected LoadError, got %v", err)
	}
}
