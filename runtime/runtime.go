// Package runtime is the host-embedding API (spec.md §6): it wires
// env, eval, guard, resolver, and output together into a single
// Runtime value constructed once per run, per the Design Notes §9
// guidance to localize what would otherwise be global mutable state.
// Grounded on the runtime/executor.Config
// functional-options constructor and cli/main.go wiring, narrowed
// from devcmd's parse/plan/execute pipeline to mlld's process/
// processAsync/execute surface.
package runtime

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/eval"
	"github.com/mlld-lang/mlld-core/exe"
	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/host"
	"github.com/mlld-lang/mlld-core/output"
	"github.com/mlld-lang/mlld-core/pipeline"
	"github.com/mlld-lang/mlld-core/resolver"
	"github.com/mlld-lang/mlld-core/rtlog"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// Runtime bundles every capability and scope needed to evaluate one or
// more `.mld` sources (spec.md §6). Construct with New; do not build
// the zero value directly.
type Runtime struct {
	parser   host.Parser
	fs       host.FileSystem
	http     host.HttpFetcher
	registry host.RegistryClient
	clock    host.Clock
	sub      exe.Subprocess

	projectRoot       string
	mode              host.ParseMode
	timeout           time.Duration
	approveAllImports bool
	available         resolver.Available
	dynamicModules    map[string]string
	seedState         map[string]types.Value

	stdout io.Writer
	stderr io.Writer
	log    *rtlog.Logger

	guards *guard.Registry
	watch  bool
}

// Option configures a Runtime; see New.
type Option func(*Runtime)

// WithProjectRoot sets the directory relative specifiers resolve
// against (spec.md §4.8).
func WithProjectRoot(dir string) Option { return func(r *Runtime) { r.projectRoot = dir } }

// WithMode selects "markdown" (default) or "strict" directive syntax
// (spec.md §6 option `mode`).
func WithMode(mode host.ParseMode) Option { return func(r *Runtime) { r.mode = mode } }

// WithState seeds `@state.*` before evaluation begins (spec.md §6
// option `state: map`).
func WithState(state map[string]types.Value) Option {
	return func(r *Runtime) { r.seedState = state }
}

// WithDynamicModules injects module content by specifier instead of
// resolving it through a fetcher (spec.md §6 option
// `dynamicModules: map<specifier, value>`).
func WithDynamicModules(modules map[string]string) Option {
	return func(r *Runtime) { r.dynamicModules = modules }
}

// WithTimeout bounds one Process/ProcessAsync call (spec.md §6 option
// `timeout`).
func WithTimeout(d time.Duration) Option { return func(r *Runtime) { r.timeout = d } }

// WithApproveAllImports skips interactive import approval, treating
// every `/import` as pre-approved (spec.md §6 option
// `approveAllImports: bool`).
func WithApproveAllImports(v bool) Option { return func(r *Runtime) { r.approveAllImports = v } }

// WithParser supplies the injected grammar (spec.md §1: the parser is
// an external collaborator). Required — New panics without one.
func WithParser(p host.Parser) Option { return func(r *Runtime) { r.parser = p } }

// WithFileSystem overrides the default OS-backed filesystem.
func WithFileSystem(fs host.FileSystem) Option { return func(r *Runtime) { r.fs = fs } }

// WithHTTPFetcher supplies the capability URL-specifier imports and
// registry fetches use.
func WithHTTPFetcher(f host.HttpFetcher) Option { return func(r *Runtime) { r.http = f } }

// WithRegistryClient supplies the `@author/module` import backend.
func WithRegistryClient(c host.RegistryClient) Option {
	return func(r *Runtime) { r.registry = c }
}

// WithClock overrides the default wall-clock source (for reproducible
// tests, spec.md §6).
func WithClock(c host.Clock) Option { return func(r *Runtime) { r.clock = c } }

// WithSubprocess overrides the default os/exec-backed spawner.
func WithSubprocess(s exe.Subprocess) Option { return func(r *Runtime) { r.sub = s } }

// WithAvailable declares what this host offers against a module's
// `needs` manifest (spec.md §4.8 step 5).
func WithAvailable(a resolver.Available) Option { return func(r *Runtime) { r.available = a } }

// WithStdout routes `/show`+`/output` final text; WithStderr routes
// `/log` and diagnostics. Default os.Stdout/os.Stderr.
func WithStdout(w io.Writer) Option { return func(r *Runtime) { r.stdout = w } }
func WithStderr(w io.Writer) Option { return func(r *Runtime) { r.stderr = w } }

// WithLogger overrides the default stderr text logger.
func WithLogger(l *rtlog.Logger) Option { return func(r *Runtime) { r.log = l } }

// WithGuards pre-registers guard rules (e.g. ones built from a
// project's own `/guard` directives evaluated ahead of Process).
func WithGuards(g *guard.Registry) Option { return func(r *Runtime) { r.guards = g } }

// WithWatch enables the dev-mode filesystem watcher (spec.md §4.8):
// `static`/`cached(ttl)` imports invalidate their cache entry when the
// backing file changes during a run, instead of only at process start.
func WithWatch(enabled bool) Option { return func(r *Runtime) { r.watch = enabled } }

// New builds a Runtime from opts. Panics if no Parser was supplied —
// every other capability has a usable OS-backed default.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		projectRoot: ".",
		mode:        host.ParseMarkdown,
		fs:          NewOSFileSystem(),
		clock:       host.SystemClock{},
		sub:         NewOSSubprocess(),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		guards:      guard.NewRegistry(),
		available:   resolver.Available{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parser == nil {
		panic("runtime: New requires WithParser — the grammar is an injected capability, not part of this module")
	}
	if r.log == nil {
		r.log = rtlog.New(r.stderr, "runtime")
	}
	return r
}

// Result is what Process/Execute return (spec.md §6:
// "process(source, options) -> { output, stateWrites[] }").
type Result struct {
	Output      string
	StateWrites []output.StateWrite
}

// Process parses and runs source to completion, returning its
// materialized output (spec.md §6 `process`, one-shot interpretation).
func (r *Runtime) Process(ctx context.Context, source string) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	prog, err := r.parser.Parse(ctx, source, r.mode)
	if err != nil {
		return Result{}, err
	}
	return r.Execute(ctx, prog)
}

// Execute evaluates an already-parsed program, useful for embedders
// that parse once and re-run, or tests that hand-build a Program
// directly (spec.md §6's "assume the AST described in §3").
func (r *Runtime) Execute(ctx context.Context, prog *ast.Program) (Result, error) {
	ev, rootEnv, closeWatch, err := r.newEvaluator()
	if err != nil {
		return Result{}, err
	}
	defer closeWatch()
	runErr := ev.EvalProgram(ctx, prog, rootEnv)
	return Result{Output: ev.Materializer.Render(), StateWrites: ev.StateWrites}, runErr
}

// Handle is returned by ProcessAsync (spec.md §6 `processAsync`):
// Result blocks for the final output; UpdateState mutates a seeded
// `@state.*` variable mid-run.
type Handle struct {
	mu     sync.Mutex
	done   bool
	result Result
	err    error
	ready  chan struct{}

	rootEnv *env.Env
}

// Result blocks until the run completes and returns its output.
func (h *Handle) Result() (Result, error) {
	<-h.ready
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// UpdateState mutates the top-level `@state.<name>` variable while the
// run is still in flight (spec.md §6: "fails with REQUEST_NOT_FOUND
// after completion").
func (h *Handle) UpdateState(name string, v types.Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return errkind.New(errkind.Cancellation, "REQUEST_NOT_FOUND: run already completed")
	}
	stateVar, ok := h.rootEnv.Get("state")
	if !ok {
		return errkind.New(errkind.UndefinedRef, "no @state bound for this run")
	}
	obj := value.AsData(stateVar.Value)
	if obj.Kind != types.KindObject {
		return errkind.New(errkind.FieldAccess, "cannot update @state."+name)
	}
	keys := obj.Keys()
	fields := make(map[string]types.Value, len(keys)+1)
	for _, k := range keys {
		fields[k], _ = obj.Field(k)
	}
	if _, existed := fields[name]; !existed {
		keys = append(keys, name)
	}
	fields[name] = v
	stateVar.Value = value.FromData(types.NewObject(keys, fields), stateVar.Value.Mx)
	return nil
}

// ProcessAsync parses source and runs it on a background goroutine,
// returning immediately with a Handle (spec.md §6 `processAsync`,
// "streaming").
func (r *Runtime) ProcessAsync(ctx context.Context, source string) (*Handle, error) {
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	prog, err := r.parser.Parse(ctx, source, r.mode)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	ev, rootEnv, closeWatch, err := r.newEvaluator()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	h := &Handle{ready: make(chan struct{}), rootEnv: rootEnv}

	go func() {
		defer close(h.ready)
		defer closeWatch()
		if cancel != nil {
			defer cancel()
		}
		runErr := ev.EvalProgram(ctx, prog, rootEnv)
		h.mu.Lock()
		h.done = true
		h.result = Result{Output: ev.Materializer.Render(), StateWrites: ev.StateWrites}
		h.err = runErr
		h.mu.Unlock()
	}()
	return h, nil
}

// newEvaluator builds one evaluator + root environment from the
// Runtime's wired capabilities, seeding `@state` and any
// dynamicModules per spec.md §6 options.
func (r *Runtime) newEvaluator() (*eval.Evaluator, *env.Env, func(), error) {
	cache := resolver.NewCache(nil)
	fetchers := map[resolver.Kind]resolver.Fetcher{
		resolver.KindRelative: dynamicOverride(r.dynamicModules, &resolver.FilesystemFetcher{FS: r.fs, BaseDir: r.projectRoot}),
		resolver.KindAbsolute: dynamicOverride(r.dynamicModules, &resolver.FilesystemFetcher{FS: r.fs, BaseDir: r.projectRoot}),
	}
	if r.http != nil {
		fetchers[resolver.KindURL] = dynamicOverride(r.dynamicModules, &resolver.URLFetcher{HTTP: r.http})
	}
	if r.registry != nil {
		fetchers[resolver.KindRegistry] = dynamicOverride(r.dynamicModules, &resolver.RegistryFetcher{Client: r.registry})
	}

	closeWatch := func() {}
	var watcher *resolver.Watcher
	if r.watch {
		w, err := resolver.NewWatcher(cache, r.log)
		if err != nil {
			return nil, nil, nil, errkind.Wrap(errkind.Execution, "failed to start import watcher", err)
		}
		watcher = w
		go watcher.Run()
		closeWatch = func() { _ = watcher.Close() }
	}

	bus := pipeline.NewStreamBus()
	shell := &exe.ShellExecutor{Subprocess: r.sub}
	js := &exe.JSExecutor{Subprocess: r.sub}
	py := &exe.PythonExecutor{Subprocess: r.sub}

	var interpret resolver.Interpreter
	var res *resolver.Resolver
	interpret = func(ctx context.Context, source string, filePath string) (*env.Env, error) {
		prog, err := r.parser.Parse(ctx, source, r.mode)
		if err != nil {
			return nil, err
		}
		moduleEnv := env.New(r.projectRoot, filePath, nil)
		moduleEv := &eval.Evaluator{
			Materializer: output.New(output.ModeMarkdown),
			Shell:        shell,
			JS:           js,
			Python:       py,
			FS:           r.fs,
			Clock:        r.clock,
			Stdout:       io.Discard,
			Stderr:       r.stderr,
			Log:          r.log,
			StreamBus:    bus,
			Guards:       r.guards,
			Resolver:     res,
		}
		if err := moduleEv.EvalProgram(ctx, prog, moduleEnv); err != nil {
			return nil, err
		}
		return moduleEnv, nil
	}
	// One Resolver serves the whole run so its in-flight set sees
	// every import on a chain and can detect cycles across modules.
	res = resolver.New(cache, fetchers, interpret, r.available, watcher)

	ev := &eval.Evaluator{
		Materializer: output.New(output.ModeMarkdown),
		Shell:        shell,
		JS:           js,
		Python:       py,
		FS:           r.fs,
		Clock:        r.clock,
		Stdout:       r.stdout,
		Stderr:       r.stderr,
		Log:          r.log,
		StreamBus:    bus,
		Guards:       r.guards,
		Resolver:     res,
	}

	rootEnv := env.New(r.projectRoot, "", nil)
	if r.seedState != nil {
		keys := make([]string, 0, len(r.seedState))
		for k := range r.seedState {
			keys = append(keys, k)
		}
		stateObj := types.NewObject(keys, r.seedState)
		if err := rootEnv.Set(&env.Variable{Name: "state", Kind: env.KindObject, Value: value.FromData(stateObj, value.Metadata{})}); err != nil {
			return nil, nil, nil, err
		}
	}
	return ev, rootEnv, closeWatch, nil
}

// dynamicOverride wraps fetcher so that a specifier present in
// modules (spec.md §6 option `dynamicModules: map<specifier, value>`)
// short-circuits the real fetch and returns its injected content
// instead — used by embedders/tests to stub a module's content
// without touching the filesystem or network.
func dynamicOverride(modules map[string]string, fetcher resolver.Fetcher) resolver.Fetcher {
	if len(modules) == 0 {
		return fetcher
	}
	return &overrideFetcher{modules: modules, next: fetcher}
}

type overrideFetcher struct {
	modules map[string]string
	next    resolver.Fetcher
}

func (f *overrideFetcher) Fetch(ctx context.Context, spec resolver.Specifier) (resolver.FetchResult, error) {
	if content, ok := f.modules[spec.Raw]; ok {
		return resolver.FetchResult{Content: content}, nil
	}
	return f.next.Fetch(ctx, spec)
}
