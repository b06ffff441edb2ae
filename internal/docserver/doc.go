// Package docserver is a reference implementation of the CubeSpace document
// store: the server side of package docstore.
//
// Owners and cubes live in SQLite (modernc.org/sqlite, no cgo). Write bodies
// are checked against the JSON schemas under schemas/ before they reach the
// database. Every successful write is followed by a full snapshot of that
// collection to each websocket feed client, so clients never see diffs.
//
// Routes:
//
//	POST /api/auth/anonymous   issue a session token
//	POST /api/auth/identity    profile, or 204 without an identity provider
//	GET  /api/cubes            {"items":[...]}, gzip when accepted
//	GET  /api/owners           {"items":[...]}, gzip when accepted
//	POST /api/owners           {"ownerId"}; bearer token required
//	POST /api/cubes            {"remoteId"}; bearer token, existing owner
//	GET  /api/feed?collection= websocket snapshot stream
//	GET  /metrics              Prometheus
//	GET  /healthz
package docserver
