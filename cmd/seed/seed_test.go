package main

import (
	"context"
	"strings"
	"testing"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "blogs": [
    {"id": "1", "title": "First", "published": true},
    {"id": "2", "title": "Second", "published": false}
  ],
  "services": [{"title": "Consulting"}],
  "jobs": []
}`

func TestSeed_PreservesStringIDs(t *testing.T) {
	ctx := context.Background()
	svc := service.NewMemoryService()

	got, err := seed(ctx, svc, strings.NewReader(seedJSON), false)
	require.NoError(t, err)
	require.Equal(t, summary{Created: 2}, got["blogs"])
	require.Equal(t, summary{Created: 1}, got["services"])
	require.Equal(t, summary{}, got["jobs"])

	blogs, _ := content.Lookup("blogs")
	it, err := svc.Get(ctx, blogs, "1", false)
	require.NoError(t, err)
	require.Equal(t, "1", it.ID())
	require.Equal(t, "First", it["title"])

	// re-running updates in place
	got, err = seed(ctx, svc, strings.NewReader(seedJSON), false)
	require.NoError(t, err)
	require.Equal(t, summary{Updated: 2}, got["blogs"])

	list, err := svc.List(ctx, blogs, content.ListQuery{IncludeHidden: true})
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
}

func TestSeed_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc := service.NewMemoryService()

	_, err := seed(ctx, svc, strings.NewReader(seedJSON), true)
	require.NoError(t, err)

	blogs, _ := content.Lookup("blogs")
	list, err := svc.List(ctx, blogs, content.ListQuery{IncludeHidden: true})
	require.NoError(t, err)
	require.Zero(t, list.Total)
}

func TestSeed_Errors(t *testing.T) {
	svc := service.NewMemoryService()

	_, err := seed(context.Background(), svc, strings.NewReader(`{"pages": []}`), false)
	require.Error(t, err)

	_, err = seed(context.Background(), svc, strings.NewReader(`not json`), false)
	require.Error(t, err)

	_, err = seed(context.Background(), svc, strings.NewReader(`{"blogs": [{"published": "yes"}]}`), false)
	require.ErrorContains(t, err, "blogs[0]")
}
