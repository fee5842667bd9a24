package ports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lumenhn/lumen/internal/app"
	"github.com/lumenhn/lumen/internal/domain"
	"github.com/lumenhn/lumen/internal/logging"
)

const siteName = "lumen"

// Known bot signatures. Browsers never match; previews in link unfurlers and
// search indexes always do.
var crawlerUARegex = regexp.MustCompile(`(?i)(googlebot|bingbot|yandex(bot)?|baiduspider|duckduckbot|slurp|facebookexternalhit|facebot|twitterbot|linkedinbot|whatsapp|telegrambot|slackbot|discordbot|pinterestbot|applebot|semrushbot|petalbot)`)

// Pre-existing social meta tags get stripped before we inject ours.
var existingSocialMetaRegex = regexp.MustCompile(`(?i)<meta\s[^>]*(?:property|name)\s*=\s*["'](?:og:|twitter:)[^>]*>\s*`)

var (
	titleTagRegex = regexp.MustCompile(`(?i)</title>`)
	headTagRegex  = regexp.MustCompile(`(?i)<head[^>]*>`)
)

type pageMeta struct {
	title       string
	description string
	imageURL    string
}

// MakeCrawlerMetaHandler serves the SPA shell and static assets. Crawler user
// agents asking for an app route get index.html with route-specific Open
// Graph and Twitter meta injected; everyone else gets the files unmodified.
func MakeCrawlerMetaHandler(
	getStory app.GetStory,
	getUserProfile app.GetUserProfile,
	distDir string,
	publicOrigin string,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	static := http.FileServer(http.Dir(distDir))

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("static"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !shouldInjectMeta(r) {
			static.ServeHTTP(w, r)
			return
		}

		indexHTML, err := os.ReadFile(filepath.Join(distDir, "index.html"))
		if err != nil {
			logging.FromContext(ctx).Error("Failed to read index.html", "error", err)
			static.ServeHTTP(w, r)
			return
		}

		meta := metaForRoute(ctx, getStory, getUserProfile, r.URL.Path)
		page := injectMeta(string(indexHTML), meta, publicOrigin, r.URL.Path)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(page)); err != nil {
			logging.FromContext(ctx).Error("Failed to write crawler response", "error", err)
		}
	}

	return middleware(handler)
}

func shouldInjectMeta(r *http.Request) bool {
	if !crawlerUARegex.MatchString(r.UserAgent()) {
		return false
	}
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		return false
	}
	// Asset requests have a file extension; app routes never do
	if strings.Contains(filepath.Base(path), ".") {
		return false
	}
	return true
}

func metaForRoute(ctx context.Context, getStory app.GetStory, getUserProfile app.GetUserProfile, path string) pageMeta {
	defaultMeta := pageMeta{
		title:       siteName + " — a fast Hacker News reader",
		description: "Read Hacker News with previews, offline caching and privacy-friendly link handling.",
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if segments[0] == "" {
		return defaultMeta
	}

	switch segments[0] {
	case "search":
		return pageMeta{
			title:       "Search — " + siteName,
			description: "Search Hacker News stories and comments.",
		}
	case "top", "new", "newest", "best", "ask", "show", "jobs", "job":
		name := domain.CanonicalListName(segments[0])
		return pageMeta{
			title:       strings.ToUpper(name[:1]) + name[1:] + " stories — " + siteName,
			description: fmt.Sprintf("The current %s stories on Hacker News.", name),
		}
	case "item":
		if len(segments) < 2 {
			return defaultMeta
		}
		id, err := strconv.ParseInt(segments[1], 10, 64)
		if err != nil {
			return defaultMeta
		}
		story, err := getStory(ctx, id)
		if err != nil {
			logging.FromContext(ctx).Warn("Failed to resolve story for crawler meta", "id", id, "error", err.Error())
			return defaultMeta
		}
		return pageMeta{
			title:       story.Title + " — " + siteName,
			description: fmt.Sprintf("%d points, %d comments on Hacker News.", story.Score, story.Descendants),
		}
	case "user":
		if len(segments) < 2 {
			return defaultMeta
		}
		username := segments[1]
		profile, err := getUserProfile(ctx, username)
		if err != nil {
			logging.FromContext(ctx).Warn("Failed to resolve user for crawler meta", "username", username, "error", err.Error())
			return defaultMeta
		}
		return pageMeta{
			title:       profile.ID + " — " + siteName,
			description: fmt.Sprintf("Hacker News profile of %s, %d karma.", profile.ID, profile.Karma),
		}
	default:
		return defaultMeta
	}
}

func escapeAttr(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		`"`, "&quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(value)
}

// injectMeta strips any social meta tags already present and inserts ours
// right after </title> when present, else after <head>, else at the front.
func injectMeta(html string, meta pageMeta, publicOrigin string, path string) string {
	html = existingSocialMetaRegex.ReplaceAllString(html, "")

	title := escapeAttr(meta.title)
	description := escapeAttr(meta.description)
	pageURL := escapeAttr(strings.TrimSuffix(publicOrigin, "/") + path)

	var block strings.Builder
	fmt.Fprintf(&block, `<meta property="og:type" content="website">`+"\n")
	fmt.Fprintf(&block, `<meta property="og:url" content="%s">`+"\n", pageURL)
	fmt.Fprintf(&block, `<meta property="og:title" content="%s">`+"\n", title)
	fmt.Fprintf(&block, `<meta property="og:description" content="%s">`+"\n", description)
	fmt.Fprintf(&block, `<meta property="og:site_name" content="%s">`+"\n", escapeAttr(siteName))
	fmt.Fprintf(&block, `<meta name="twitter:title" content="%s">`+"\n", title)
	fmt.Fprintf(&block, `<meta name="twitter:description" content="%s">`+"\n", description)
	if meta.imageURL != "" {
		imageURL := escapeAttr(meta.imageURL)
		fmt.Fprintf(&block, `<meta property="og:image" content="%s">`+"\n", imageURL)
		fmt.Fprintf(&block, `<meta property="og:image:width" content="1200">`+"\n")
		fmt.Fprintf(&block, `<meta property="og:image:height" content="630">`+"\n")
		fmt.Fprintf(&block, `<meta name="twitter:card" content="summary_large_image">`+"\n")
		fmt.Fprintf(&block, `<meta name="twitter:image" content="%s">`+"\n", imageURL)
	} else {
		fmt.Fprintf(&block, `<meta name="twitter:card" content="summary">`+"\n")
	}

	if loc := titleTagRegex.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + "\n" + block.String() + html[loc[1]:]
	}
	if loc := headTagRegex.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + "\n" + block.String() + html[loc[1]:]
	}
	return block.String() + html
}
