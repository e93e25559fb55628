// Package env implements the Environment (spec.md §4.1, component C1):
// a lexically-scoped variable store with a parent/child chain, export
// manifests, and per-language shadow environments. Variable resolution
// is purely lexical — there is no dynamic scoping (spec.md §4.1
// invariant).
package env

import (
	"sync"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errkind"
)

// ExportManifest records which identifiers `/export` makes visible to
// an importer (spec.md §4.1 setExportManifest: "nil means wildcard").
type ExportManifest struct {
	Wildcard bool
	Names    map[string]bool
}

// Reserved resolves a reserved identifier (`debug`, registry roots,
// `mx`, `ctx`, ...) to a synthesized Variable. It is supplied by the
// Runtime that owns the root Environment (spec.md §6 reserved
// variables) so that env itself stays free of host/runtime concerns.
type Reserved func(name string) (*Variable, bool)

// Env is one lexical scope. The zero value is not usable; construct
// with New or Child.
type Env struct {
	mu     sync.RWMutex
	parent *Env

	vars           map[string]*Variable
	exportManifest *ExportManifest
	shadowEnvs     map[string]map[string]Executable // lang -> name -> fn

	currentFilePath string
	projectRoot     string

	// ResolverCache is held as `any` to avoid env depending on the
	// resolver package (resolver depends on env to materialize
	// imported variables, not the other way around); the concrete type
	// is *resolver.Cache, asserted by callers that know it.
	ResolverCache any

	emittedNodes []ast.Node
	reserved     Reserved
}

// New creates a root environment.
func New(projectRoot, currentFilePath string, reserved Reserved) *Env {
	return &Env{
		vars:            map[string]*Variable{},
		shadowEnvs:      map[string]map[string]Executable{},
		projectRoot:     projectRoot,
		currentFilePath: currentFilePath,
		reserved:        reserved,
	}
}

// Child creates a lazily-copying child scope. Reads fall through to the
// parent; writes land only in the child (spec.md §4.1: "lazy copy;
// parent reads pass through").
func (e *Env) Child() *Env {
	return &Env{
		parent:          e,
		vars:            map[string]*Variable{},
		shadowEnvs:      map[string]map[string]Executable{},
		projectRoot:     e.projectRoot,
		currentFilePath: e.currentFilePath,
		ResolverCache:   e.ResolverCache,
		reserved:        e.reserved,
	}
}

// Get resolves name by walking the parent chain; the first match wins.
// Reserved names short-circuit before the chain is walked.
func (e *Env) Get(name string) (*Variable, bool) {
	if e.reserved != nil {
		if v, ok := e.reserved(name); ok {
			return v, true
		}
	}
	for env := e; env != nil; env = env.parent {
		env.mu.RLock()
		v, ok := env.vars[name]
		env.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds name in the current scope. It fails with VariableRedefinition
// if name is already bound in THIS scope (spec.md §4.1: "not in
// parents" — shadowing across scopes is allowed).
func (e *Env) Set(v *Variable) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.vars[v.Name]; exists {
		return errkind.New(errkind.VariableRedef, "variable '"+v.Name+"' already defined in this scope").
			At(errkind.Location{Line: v.Source.DefinedAt.Line, Column: v.Source.DefinedAt.Column}, v.Source.File)
	}
	e.vars[v.Name] = v
	return nil
}

// Merge hoists child's exports into e (spec.md §4.1 merge): only identifiers
// in child's export manifest (or all, if wildcard) are copied up;
// emitted nodes always hoist regardless of export status.
func (e *Env) Merge(child *Env) {
	child.mu.RLock()
	defer child.mu.RUnlock()

	wildcard := child.exportManifest == nil || child.exportManifest.Wildcard
	for name, v := range child.vars {
		if wildcard || (child.exportManifest != nil && child.exportManifest.Names[name]) {
			e.mu.Lock()
			e.vars[name] = v
			e.mu.Unlock()
		}
	}
	e.mu.Lock()
	e.emittedNodes = append(e.emittedNodes, child.emittedNodes...)
	e.mu.Unlock()
}

// SetExportManifest records `/export { @a, @b }` or `/export { * }`.
// A nil/empty names slice with wildcard=true means export everything.
func (e *Env) SetExportManifest(names []string, wildcard bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := &ExportManifest{Wildcard: wildcard, Names: map[string]bool{}}
	for _, n := range names {
		m.Names[n] = true
	}
	e.exportManifest = m
}

// ExportedNames returns the names this environment's export manifest
// would hoist, used by the Resolver (C8) to build the module namespace
// for a wildcard `import * as @ns`. As in Merge, a nil manifest counts
// as wildcard: every binding in this scope is reported.
func (e *Env) ExportedNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.exportManifest == nil || e.exportManifest.Wildcard {
		names := make([]string, 0, len(e.vars))
		for n := range e.vars {
			names = append(names, n)
		}
		return names
	}
	names := make([]string, 0, len(e.exportManifest.Names))
	for n := range e.exportManifest.Names {
		names = append(names, n)
	}
	return names
}

// Emit records an emitted output node in source order (spec.md §4.9).
func (e *Env) Emit(n ast.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emittedNodes = append(e.emittedNodes, n)
}

// EmittedNodes returns this scope's own emitted nodes (not parents').
func (e *Env) EmittedNodes() []ast.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]ast.Node(nil), e.emittedNodes...)
}

// RegisterShadow injects a per-language shadow function (spec.md §4.5,
// §9 "Executable shadow environments"). It is invoked at call time and
// must never leak across modules: a child environment created for an
// imported module starts with empty shadowEnvs.
func (e *Env) RegisterShadow(lang, name string, fn Executable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shadowEnvs[lang] == nil {
		e.shadowEnvs[lang] = map[string]Executable{}
	}
	e.shadowEnvs[lang][name] = fn
}

// Shadows returns the shadow function map for lang, walking up the
// parent chain (shadow registrations are themselves lexically scoped).
func (e *Env) Shadows(lang string) map[string]Executable {
	merged := map[string]Executable{}
	for env := e; env != nil; env = env.parent {
		env.mu.RLock()
		for name, fn := range env.shadowEnvs[lang] {
			if _, exists := merged[name]; !exists {
				merged[name] = fn
			}
		}
		env.mu.RUnlock()
	}
	return merged
}

func (e *Env) CurrentFilePath() string { return e.currentFilePath }
func (e *Env) ProjectRoot() string     { return e.projectRoot }
func (e *Env) SetCurrentFilePath(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentFilePath = p
}
