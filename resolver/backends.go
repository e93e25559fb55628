package resolver

import (
	"context"
	"path/filepath"

	"github.com/mlld-lang/mlld-core/host"
)

// FilesystemFetcher resolves relative/absolute specifiers via the
// injected host.FileSystem (spec.md §4.8 step 2-3).
type FilesystemFetcher struct {
	FS      host.FileSystem
	BaseDir string // directory of the importing file, for relative specifiers
}

func (f *FilesystemFetcher) Fetch(ctx context.Context, spec Specifier) (FetchResult, error) {
	path := spec.Raw
	if spec.Kind == KindRelative {
		path = filepath.Join(f.BaseDir, spec.Raw)
	}
	data, err := f.FS.ReadFile(ctx, path)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Content: string(data), Path: path}, nil
}

// URLFetcher resolves URL specifiers via the injected host.HttpFetcher.
type URLFetcher struct {
	HTTP host.HttpFetcher
}

func (f *URLFetcher) Fetch(ctx context.Context, spec Specifier) (FetchResult, error) {
	resp, err := f.HTTP.Fetch(ctx, spec.Raw, nil)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Content: string(resp.Content)}, nil
}

// RegistryFetcher resolves `@author/module[@version|@tag]` specifiers
// via the injected host.RegistryClient.
type RegistryFetcher struct {
	Client host.RegistryClient
}

func (f *RegistryFetcher) Fetch(ctx context.Context, spec Specifier) (FetchResult, error) {
	res, err := f.Client.Resolve(ctx, spec.Raw)
	if err != nil {
		return FetchResult{}, err
	}

	var manifest Manifest
	if res.Needs != nil {
		if err := ValidateManifestShape(res.Needs); err != nil {
			return FetchResult{}, err
		}
		manifest = manifestFromRaw(res.Needs)
	}

	return FetchResult{
		Content:      res.Content,
		Integrity:    res.Integrity,
		Needs:        manifest,
		Dependencies: res.Dependencies,
	}, nil
}

func manifestFromRaw(raw map[string]any) Manifest {
	return Manifest{
		Runtimes:     stringSlice(raw["runtimes"]),
		Tools:        stringSlice(raw["tools"]),
		Packages:     stringSlice(raw["packages"]),
		Capabilities: stringSlice(raw["capabilities"]),
	}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
