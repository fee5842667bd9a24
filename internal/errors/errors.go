// Package errors holds the sentinel errors adapters wrap so handlers can map
// a failure to a response status without caring which upstream broke.
package errors

import "errors"

var (
	// APIServerError covers upstream failures that are not the caller's
	// fault, like a Hacker News API 5xx.
	APIServerError = errors.New("upstream error")

	// APIClientError covers upstream rejections of the request itself.
	APIClientError = errors.New("upstream rejected request")

	RatelimitExceededError = errors.New("rate limit exceeded")
)
