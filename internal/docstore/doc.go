// Package docstore provides the client for the CubeSpace document store.
//
// # Overview
//
// The store holds two collections, cubes and owners. This package writes new
// documents, reads full collections, and subscribes to collection changes.
// Every subscription delivers complete snapshots, never diffs, which is what
// the cube reconciler expects.
//
// # Architecture
//
//   - types.go: wire payloads shared with the store server
//   - client.go: authentication, writes, and collection reads over HTTP
//   - feed.go: snapshot subscriptions over a websocket or by polling
//
// # Authentication
//
// EnsureAuthenticated obtains an anonymous bearer token from the store. Reads
// work without one; writes fail with ErrUnauthenticated until it succeeds.
// LoginWithIdentityProvider returns the visitor's profile when the store has
// an identity provider configured and nil otherwise.
//
// # Feeds
//
// In websocket mode the store pushes a frame for every change:
//
//	{"type":"snapshot","collection":"cubes","seq":7,"records":[...]}
//
// The subscription does not reconnect; a broken connection is reported once
// through onError. In poll mode the collection is fetched every poll interval,
// doubling the wait after each consecutive failure up to 30 seconds.
//
// # Error Handling
//
// Non-2xx responses become *StatusError carrying the path, code, and the
// store's error message. A 401 unwraps to ErrUnauthenticated:
//
//	if errors.Is(err, docstore.ErrUnauthenticated) {
//		// sign in again
//	}
package docstore
