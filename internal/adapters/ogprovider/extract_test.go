package ogprovider

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed
}

func TestExtractOgMetaPriorities(t *testing.T) {
	t.Parallel()

	article := mustParse(t, "https://blog.example.com/post/123")

	t.Run("og tags win over twitter tags", func(t *testing.T) {
		t.Parallel()
		head := []byte(`<html><head>
			<meta property="og:title" content="OG Title">
			<meta name="twitter:title" content="Twitter Title">
			<meta property="og:description" content="OG Desc">
			<meta property="og:image" content="https://cdn.example.com/a.jpg">
		</head>`)

		meta := extractOgMeta(head, article)
		require.Equal(t, "OG Title", *meta.Title)
		require.Equal(t, "OG Desc", *meta.Description)
		require.Equal(t, "https://cdn.example.com/a.jpg", *meta.ImageURL)
	})

	t.Run("twitter tags as fallback", func(t *testing.T) {
		t.Parallel()
		head := []byte(`<head>
			<meta name="twitter:title" content="Twitter Title">
			<meta name="twitter:image" content="https://cdn.example.com/t.jpg">
			<meta name="description" content="Generic description">
		</head>`)

		meta := extractOgMeta(head, article)
		require.Equal(t, "Twitter Title", *meta.Title)
		require.Equal(t, "Generic description", *meta.Description)
		require.Equal(t, "https://cdn.example.com/t.jpg", *meta.ImageURL)
	})

	t.Run("title element as last resort", func(t *testing.T) {
		t.Parallel()
		head := []byte(`<head><title>  Page Title </title></head>`)

		meta := extractOgMeta(head, article)
		require.Equal(t, "Page Title", *meta.Title)
		require.Nil(t, meta.Description)
		require.Nil(t, meta.ImageURL)
	})

	t.Run("no usable tags", func(t *testing.T) {
		t.Parallel()
		meta := extractOgMeta([]byte(`<head></head>`), article)
		require.True(t, meta.IsZero())
	})
}

func TestExtractOgMetaResolvesRelativeImages(t *testing.T) {
	t.Parallel()

	article := mustParse(t, "https://blog.example.com/post/123")

	cases := []struct {
		name     string
		image    string
		expected string
	}{
		{
			name:     "absolute",
			image:    "https://cdn.example.com/og.jpg",
			expected: "https://cdn.example.com/og.jpg",
		},
		{
			name:     "protocol relative",
			image:    "//cdn.example.com/og.jpg",
			expected: "https://cdn.example.com/og.jpg",
		},
		{
			name:     "root relative",
			image:    "/static/og.jpg",
			expected: "https://blog.example.com/static/og.jpg",
		},
		{
			name:     "path relative",
			image:    "og.jpg",
			expected: "https://blog.example.com/post/og.jpg",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			head := []byte(`<head><meta property="og:image" content="` + c.image + `"></head>`)
			meta := extractOgMeta(head, article)
			require.NotNil(t, meta.ImageURL)
			require.Equal(t, c.expected, *meta.ImageURL)
		})
	}
}

func TestExtractOgMetaDecodesEntities(t *testing.T) {
	t.Parallel()

	article := mustParse(t, "https://blog.example.com/post")
	head := []byte(`<head><meta property="og:title" content="Ben &amp; Jerry&#39;s &lt;3"></head>`)

	meta := extractOgMeta(head, article)
	require.Equal(t, "Ben & Jerry's <3", *meta.Title)
}

func TestExtractOgMetaTruncates(t *testing.T) {
	t.Parallel()

	article := mustParse(t, "https://blog.example.com/post")

	longTitle := strings.Repeat("a", 198) + "  " + strings.Repeat("b", 100)
	head := []byte(`<head><meta property="og:title" content="` + longTitle + `"></head>`)

	meta := extractOgMeta(head, article)
	require.NotNil(t, meta.Title)
	// Truncated at 200 runes, trailing whitespace trimmed before the marker
	require.Equal(t, strings.Repeat("a", 198)+"…", *meta.Title)

	longDescription := strings.Repeat("d", 400)
	head = []byte(`<head><meta property="og:description" content="` + longDescription + `"></head>`)
	meta = extractOgMeta(head, article)
	require.Equal(t, strings.Repeat("d", 300)+"…", *meta.Description)
}

func TestReadHeadStopsAtClosingTag(t *testing.T) {
	t.Parallel()

	page := `<html><head><meta property="og:title" content="x"></head><body>` + strings.Repeat("z", 100000)
	head := readHead(strings.NewReader(page))

	require.LessOrEqual(t, len(head), maxHeadBytes)
	require.True(t, strings.HasSuffix(string(head), "</head>"))
}

func TestReadHeadCapsUnclosedDocuments(t *testing.T) {
	t.Parallel()

	page := "<html><head>" + strings.Repeat("x", 200000)
	head := readHead(strings.NewReader(page))

	require.Equal(t, maxHeadBytes, len(head))
}

func TestReadHeadHandlesNonASCIIContent(t *testing.T) {
	t.Parallel()

	// Runes whose lowercase form has a different byte length must not shift
	// the closing-tag match. Ⱥ (2 bytes) lowers to ⱥ (3 bytes); İ (2 bytes)
	// lowers to a 1-byte i.
	t.Run("widening runes", func(t *testing.T) {
		t.Parallel()

		page := "<html><head><title>" + strings.Repeat("Ⱥ", 20000) + "</title></HEAD><body>"
		head := readHead(strings.NewReader(page))

		require.True(t, strings.HasSuffix(string(head), "</HEAD>"))
	})

	t.Run("narrowing runes keep trailing metas", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><title>` + strings.Repeat("İ", 20000) +
			`</title><meta property="og:title" content="still here"></head><body>`
		head := readHead(strings.NewReader(page))

		require.True(t, strings.HasSuffix(string(head), "</head>"))

		meta := extractOgMeta(head, mustParse(t, "https://blog.example.com/post"))
		require.NotNil(t, meta.Title)
		require.Equal(t, "still here", *meta.Title)
	})
}
