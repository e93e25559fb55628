package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/resolver"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// evalImport implements `/import { a, b } from "spec"` / `/import * as
// @ns from "spec"` (spec.md §4.8, component C8), delegating module
// resolution, caching, and needs-manifest enforcement to resolver.Resolver
// and copying the selected bindings into the current scope.
func (ev *Evaluator) evalImport(ctx context.Context, d *ast.Directive, e *env.Env) error {
	if ev.Resolver == nil {
		return errkind.New(errkind.ImportResolution, "no resolver configured")
	}
	specifier := d.Raw["specifier"]
	wildcard := d.Meta["wildcard"] == true
	names, _ := d.Meta["names"].([]string)
	namespace := d.Raw["namespace"]

	clause := resolver.ImportClause{Names: names, Wildcard: wildcard, Namespace: namespace}
	moduleEnv, err := ev.Resolver.Resolve(ctx, specifier, e.CurrentFilePath(), clause)
	if err != nil {
		return err
	}

	exported, err := resolver.FilterExports(moduleEnv, clause)
	if err != nil {
		return err
	}

	if namespace != "" {
		return ev.bindNamespace(namespace, moduleEnv, exported, d, e)
	}

	for _, name := range exported {
		v, ok := moduleEnv.Get(name)
		if !ok {
			continue
		}
		imported := *v
		imported.Source = env.VariableSource{Directive: "import", DefinedAt: d.Pos, File: e.CurrentFilePath()}
		if err := e.Set(&imported); err != nil {
			return err
		}
	}
	return nil
}

// bindNamespace collects every exported name from moduleEnv into a
// single object variable named namespace (`import * as @ns`).
func (ev *Evaluator) bindNamespace(namespace string, moduleEnv *env.Env, exported []string, d *ast.Directive, e *env.Env) error {
	keys := make([]string, 0, len(exported))
	fields := make(map[string]types.Value, len(exported))
	var metas []value.Metadata
	for _, name := range exported {
		v, ok := moduleEnv.Get(name)
		if !ok || v.Value == nil {
			continue
		}
		keys = append(keys, name)
		fields[name] = value.AsData(v.Value)
		metas = append(metas, v.Value.Mx)
	}
	sv := value.FromData(types.NewObject(keys, fields), value.UnionMeta(metas...))
	return e.Set(&env.Variable{
		Name:   namespace,
		Kind:   env.KindObject,
		Value:  sv,
		Source: env.VariableSource{Directive: "import", DefinedAt: d.Pos, File: e.CurrentFilePath()},
	})
}
