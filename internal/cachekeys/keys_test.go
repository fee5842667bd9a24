package cachekeys_test

import (
	"testing"

	"github.com/lumenhn/lumen/internal/cachekeys"
	"github.com/stretchr/testify/require"
)

func TestBuildIsOrderIndependent(t *testing.T) {
	t.Parallel()

	p1 := map[string]any{"a": 1, "b": 2, "c": []int{1, 2, 3}}
	p2 := map[string]any{"c": []int{1, 2, 3}, "b": 2, "a": 1}

	require.Equal(t, cachekeys.Build("search", p1), cachekeys.Build("search", p2))
}

func TestBuildPreservesArrayOrder(t *testing.T) {
	t.Parallel()

	require.NotEqual(
		t,
		cachekeys.Build("search", []int{1, 2}),
		cachekeys.Build("search", []int{2, 1}),
	)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		resource string
		params   []any
		expected string
	}{
		{
			name:     "no params",
			resource: "storyList",
			expected: "v1:storyList",
		},
		{
			name:     "scalar param",
			resource: "story",
			params:   []any{"123"},
			expected: `v1:story:"123"`,
		},
		{
			name:     "nil param",
			resource: "story",
			params:   []any{nil},
			expected: "v1:story:null",
		},
		{
			name:     "object param",
			resource: "search",
			params:   []any{map[string]any{"q": "go", "page": 2}},
			expected: `v1:search:{"page":2,"q":"go"}`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.expected, cachekeys.Build(c.resource, c.params...))
		})
	}
}

func TestConvenienceWrappers(t *testing.T) {
	t.Parallel()

	require.Equal(t, `v1:story:"42"`, cachekeys.StoryKey(42))
	require.Equal(t, `v1:user:"pg"`, cachekeys.UserKey("pg"))
	require.Equal(t, `v1:storyList:"top"`, cachekeys.StoryListKey("top"))

	// newest is an alias for new
	require.Equal(t, cachekeys.StoryListKey("new"), cachekeys.StoryListKey("newest"))
}
