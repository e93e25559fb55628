package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/resolver"
)

func TestClassifySpecifierKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind resolver.Kind
	}{
		{"./util.mld", resolver.KindRelative},
		{"../shared/util.mld", resolver.KindRelative},
		{"/abs/util.mld", resolver.KindAbsolute},
		{"https://example.com/mod.mld", resolver.KindURL},
		{"@acme/toolkit", resolver.KindRegistry},
		{"@acme/toolkit@1.2.3", resolver.KindRegistry},
		{"@acme/toolkit@latest", resolver.KindRegistry},
	}
	for _, c := range cases {
		spec, err := resolver.Classify(c.raw)
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.kind, spec.Kind, c.raw)
	}
}

func TestClassifyRegistryVersionVsTag(t *testing.T) {
	spec, err := resolver.Classify("@acme/toolkit@1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", spec.Version)
	assert.Empty(t, spec.Tag)

	spec, err = resolver.Classify("@acme/toolkit@canary")
	require.NoError(t, err)
	assert.Equal(t, "canary", spec.Tag)
	assert.Empty(t, spec.Version)
}

func TestSatisfiesRange(t *testing.T) {
	assert.True(t, resolver.SatisfiesRange("1.0.0", "1.0.0"))
	assert.False(t, resolver.SatisfiesRange("1.0.0", "1.0.1"))
	assert.True(t, resolver.SatisfiesRange("1.0", "1.4.2"))
	assert.False(t, resolver.SatisfiesRange("1.5", "1.4.2"))
}

type stubFetcher struct {
	result resolver.FetchResult
	calls  int
}

func (f *stubFetcher) Fetch(ctx context.Context, spec resolver.Specifier) (resolver.FetchResult, error) {
	f.calls++
	return f.result, nil
}

func TestCacheCoalescesFetches(t *testing.T) {
	fetcher := &stubFetcher{result: resolver.FetchResult{Content: "/var @x = 1"}}
	cache := resolver.NewCache(nil)
	spec := resolver.Specifier{Raw: "./a.mld", Kind: resolver.KindRelative}

	_, err := cache.Get(context.Background(), spec, fetcher)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), spec, fetcher)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
}

func TestEnforceNeedsReportsMissing(t *testing.T) {
	m := resolver.Manifest{Tools: []string{"jq"}, Capabilities: []string{"network"}}
	avail := resolver.Available{
		Tools:        map[string]bool{},
		Capabilities: map[string]bool{"network": true},
	}
	err := resolver.Enforce(context.Background(), m, avail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs not satisfied")
}

func TestFilterExportsReportsMissingImport(t *testing.T) {
	e := env.New("/proj", "/proj/mod.mld", nil)
	e.SetExportManifest([]string{"helper"}, false)

	_, err := resolver.FilterExports(e, resolver.ImportClause{Names: []string{"helperr"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Import 'helperr' not found")
}
