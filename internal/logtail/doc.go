// Package logtail reads the tail of the client log file and parses the
// lines the slog handlers write, for the log pane of the terminal UI.
//
// # Reading
//
// Read keeps a ring buffer of maxLines entries and scans the file once, so
// memory stays proportional to maxLines rather than file size. A
// non-positive maxLines returns the whole file. A missing file yields
// nil, nil since the log is created lazily on first write.
//
//	lines, err := logtail.Read(cfg.LogPath, 400)
//
// # Parsing
//
// Parse understands both handler formats selected by log_format:
//
//	time=2025-10-08T21:01:05Z level=INFO msg="cube saved" local_id=...
//	{"time":"2025-10-08T21:01:05Z","level":"INFO","msg":"cube saved",...}
//
// Lines in neither format (panics, stray output) come back with Parsed set
// to false and are still shown. Filter applies a minimum level; unparsed
// lines always pass so nothing is silently hidden.
//
// Styling is left to the UI package.
package logtail
