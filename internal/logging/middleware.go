package logging

import (
	"log/slog"
	"net/http"
)

func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			targetURL := r.URL.Query().Get("url")
			if targetURL == "" {
				targetURL = "<missing>"
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			requestLogger := logger.With(
				slog.String("path", r.URL.Path),
				slog.String("targetURL", targetURL),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
