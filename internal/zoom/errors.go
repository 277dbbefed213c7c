package zoom

import "errors"

var (
	// ErrAuth is returned when the account-credentials token exchange fails.
	ErrAuth = errors.New("zoom: token exchange failed")
	// ErrUpstreamFetch is returned when a page request fails; partial results are discarded.
	ErrUpstreamFetch = errors.New("zoom: upstream fetch failed")
	// ErrTooManyPages is returned when a listing keeps returning continuation tokens past the page cap.
	ErrTooManyPages = errors.New("zoom: too many pages")
)
