package profilecache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentifiers is returned when resolution is attempted with an
	// empty identifier set. Terminal caller error; never retried.
	ErrNoIdentifiers = errors.New("profilecache: no identifiers provided")

	// ErrUnauthorized is returned after a 401/403 from the profile
	// store. Local identity state has already been cleared and the
	// navigator pointed at the login path by the time callers see it.
	ErrUnauthorized = errors.New("profilecache: session unauthorized")

	// ErrRecoveryExhausted is returned once the bounded NotFound
	// recovery budget is spent. All cached identity state has been
	// cleared; callers should prompt for re-authentication.
	ErrRecoveryExhausted = errors.New("profilecache: identity recovery exhausted")
)

// FetchKind classifies a profile-store failure. The classification
// decides the control flow above the fetcher: NotFound enters bounded
// recovery, ServerError is retryable with identical inputs, the rest
// are terminal locally.
type FetchKind int

const (
	FetchNotFound FetchKind = iota + 1
	FetchUnauthorized
	FetchServerError
	FetchMalformed
)

func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchUnauthorized:
		return "unauthorized"
	case FetchServerError:
		return "server_error"
	case FetchMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// FetchError is the typed failure returned by ProfileFetcher
// implementations. Classification is structural (status codes, decode
// failures), never substring matching on error text.
type FetchError struct {
	Kind   FetchKind
	Status int   // HTTP status when applicable, else 0
	Err    error // underlying cause, may be nil
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profilecache: fetch %s (status=%d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("profilecache: fetch %s (status=%d)", e.Kind, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchKind(err error) (FetchKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsNotFound reports whether err classifies as a profile-store
// NotFound (recoverable via the bounded recovery controller).
func IsNotFound(err error) bool { k, ok := fetchKind(err); return ok && k == FetchNotFound }

// IsUnauthorized reports whether err classifies as a 401/403 from the
// profile store.
func IsUnauthorized(err error) bool { k, ok := fetchKind(err); return ok && k == FetchUnauthorized }

// IsTransient reports whether err is safe to retry with the same
// identifiers (server errors and timeouts).
func IsTransient(err error) bool { k, ok := fetchKind(err); return ok && k == FetchServerError }

// IsMalformed reports whether err came from an undecodable response.
// Non-retryable; surfaced to the caller as-is.
func IsMalformed(err error) bool { k, ok := fetchKind(err); return ok && k == FetchMalformed }
