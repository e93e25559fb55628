// Package resolver implements the Resolver/Importer (spec.md §4.8,
// component C8): classifying `/import` specifiers, fetching and
// caching module content, enforcing `needs`, and handing the
// materialized source to an injected interpreter callback so this
// package never imports eval (eval imports resolver, not the reverse).
package resolver

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/mlld-lang/mlld-core/errkind"
)

// Kind classifies how a specifier resolves to content.
type Kind int

const (
	KindRelative Kind = iota
	KindAbsolute
	KindURL
	KindRegistry
)

// Modifier is the cache policy named on an import clause (spec.md
// §4.8: "module (cacheable, offline after install), static (embed at
// parse time), live (fresh every execution), cached(ttl)").
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierModule
	ModifierStatic
	ModifierLive
	ModifierCached
)

// Specifier is a classified, parsed import target.
type Specifier struct {
	Raw      string
	Kind     Kind
	Author   string // registry specifiers only
	Module   string
	Version  string // semver range/exact, if pinned
	Tag      string // named tag instead of version, if used
	Modifier Modifier
	CacheTTL int // seconds, for ModifierCached
}

// Key is the cache identity for a specifier: registry/URL specifiers
// key on author/module/version (or raw URL); filesystem specifiers key
// on their raw specifier text (spec.md §4.8 dedup: "identical specifiers
// resolved within the same run return the cached environment").
func (s Specifier) Key() string {
	switch s.Kind {
	case KindRegistry:
		v := s.Version
		if v == "" {
			v = s.Tag
		}
		return fmt.Sprintf("registry:%s/%s@%s", s.Author, s.Module, v)
	case KindURL:
		return "url:" + s.Raw
	default:
		return "file:" + s.Raw
	}
}

// Classify parses a raw specifier string into a Specifier (spec.md
// §4.8 step 1). Supported forms: "./relative.mld", "/absolute.mld",
// "<scheme>://...", "@author/module", "@author/module@semver",
// "@author/module@tag".
func Classify(raw string) (Specifier, error) {
	switch {
	case strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../"):
		return Specifier{Raw: raw, Kind: KindRelative}, nil
	case strings.HasPrefix(raw, "/"):
		return Specifier{Raw: raw, Kind: KindAbsolute}, nil
	case strings.Contains(raw, "://"):
		return Specifier{Raw: raw, Kind: KindURL}, nil
	case strings.HasPrefix(raw, "@"):
		return classifyRegistry(raw)
	default:
		// Bare relative paths without "./" are treated as filesystem
		// specifiers relative to the importing file, same as "./name".
		return Specifier{Raw: raw, Kind: KindRelative}, nil
	}
}

func classifyRegistry(raw string) (Specifier, error) {
	body := strings.TrimPrefix(raw, "@")
	parts := strings.SplitN(body, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Specifier{}, errkind.New(errkind.ImportResolution, "malformed registry specifier: "+raw)
	}
	author := parts[0]
	rest := parts[1]

	if at := strings.LastIndex(rest, "@"); at >= 0 {
		module := rest[:at]
		suffix := rest[at+1:]
		if module == "" {
			return Specifier{}, errkind.New(errkind.ImportResolution, "malformed registry specifier: "+raw)
		}
		spec := Specifier{Raw: raw, Kind: KindRegistry, Author: author, Module: module}
		if semver.IsValid(ensureV(suffix)) {
			spec.Version = suffix
		} else {
			spec.Tag = suffix
		}
		return spec, nil
	}
	return Specifier{Raw: raw, Kind: KindRegistry, Author: author, Module: rest}, nil
}

func ensureV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// SatisfiesRange reports whether candidate (a concrete version, e.g.
// "1.4.0") satisfies a requested range/exact version string using
// semver precedence. Exact matches compare directly; anything else is
// treated as a minimum version (">=").
func SatisfiesRange(requested, candidate string) bool {
	if requested == "" {
		return true
	}
	rv, cv := ensureV(requested), ensureV(candidate)
	if !semver.IsValid(rv) || !semver.IsValid(cv) {
		return requested == candidate
	}
	if strings.Count(requested, ".") >= 2 {
		return semver.Compare(rv, cv) == 0
	}
	return semver.Compare(cv, rv) >= 0
}
