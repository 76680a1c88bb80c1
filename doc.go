// Package profilecache resolves a canonical patient profile from weak,
// possibly-partial identifiers and serves it through a two-tier cache.
// Single-key reads prefer the in-process tier, fall back to a durable
// store, and serve stale entries while revalidating in the background.
// The patient ID, once observed for an entity, is never overwritten.
//
// Components:
//   - store.Store: byte store abstraction (Ristretto, BigCache, Redis,
//     or a local file for restart-surviving persistence).
//   - codec.Codec[V]: (de)serializes the cached profile.
//   - ProfileFetcher / AttachmentFetcher: black-box remote contracts;
//     an HTTP implementation lives in fetchhttp.
//   - Navigator: abstract redirect target used on session expiry and
//     recovery exhaustion.
//
// Keys:
//
//	profile:<ns>:<derived key>  - profile entries (derived key is
//	                              pid:<v>, uid:<v>, or email:<v>)
//	photo:<ns>:<patient id>     - attachment entries
//	meta:<ns>:epoch             - session epoch (invalidate-all marker)
//	meta:<ns>:recovery          - persisted recovery attempt counter
//
// Typical use:
//
//	r, _ := profilecache.New(profilecache.Options{
//	    Namespace: "clinic",
//	    Fast:      fastStore,
//	    Durable:   fileStore,
//	    Fetcher:   client,
//	})
//	res, err := r.Resolve(ctx, profilecache.IdentifierSet{Email: "x@y.com"})
package profilecache
