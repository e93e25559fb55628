// Package host declares the capabilities spec.md §6 says the
// interpreter core consumes from its embedder rather than calling
// directly: parsing, filesystem access, HTTP fetches, subprocess
// spawning, registry resolution, and a clock/random source for
// reproducible tests. Every other package that needs one of these
// takes it as a narrow interface parameter instead of importing host,
// except the packages (eval, resolver, output, runtime, and the cli
// command) that hold or wire these capabilities directly.
package host

import (
	"context"
	"io/fs"
	"time"

	"github.com/mlld-lang/mlld-core/ast"
)

// ParseMode selects the grammar variant Parser.Parse uses (spec.md §6,
// §13 open question: "strict requires leading slash on directives,
// markdown allows bare keyword directives mixed with prose").
type ParseMode string

const (
	ParseMarkdown ParseMode = "markdown"
	ParseStrict   ParseMode = "strict"
)

// Parser is the injected grammar/parser capability (spec.md §1: "the
// concrete PEG grammar/parser... OUT of scope"; §6:
// "Parser::parse(source, mode: strict|markdown) -> Ast"). The core
// never constructs an AST itself; runtime wires a real parser in.
type Parser interface {
	Parse(ctx context.Context, source string, mode ParseMode) (*ast.Program, error)
}

// FileSystem is the injected filesystem capability (spec.md §6:
// "FileSystem::{readFile, writeFile, exists, mkdir, stat, readdir}").
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Mkdir(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (fs.FileInfo, error)
	ReadDir(ctx context.Context, path string) ([]fs.DirEntry, error)
}

// FetchResponse is what HttpFetcher.Fetch returns.
type FetchResponse struct {
	Content []byte
	Headers map[string]string
	Status  int
}

// HttpFetcher is the injected URL-fetch capability (spec.md §6:
// "HttpFetcher::fetch(url, headers) -> { content, headers, status }").
type HttpFetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (FetchResponse, error)
}

// RegistryResolution is what RegistryClient.Resolve returns.
type RegistryResolution struct {
	Content      string
	Integrity    string
	Needs        map[string]any
	Dependencies []string
}

// RegistryClient is the injected module-registry capability (spec.md
// §6: "RegistryClient::resolve(specifier) -> { content, integrity,
// needs, dependencies }").
type RegistryClient interface {
	Resolve(ctx context.Context, specifier string) (RegistryResolution, error)
}

// Clock is the injected time source (spec.md §6: "Clock::now() — for
// reproducibility in tests").
type Clock interface {
	Now() time.Time
}

// Random is the injected randomness source (spec.md §6: "Random::gen()
// — for reproducibility in tests").
type Random interface {
	Gen() float64
}

// SystemClock is the real wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
