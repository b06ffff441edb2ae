// Package config loads the CubeSpace client configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/cubespace/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or blank, use defaults
//
// # TOML Format
//
//	store_url = "http://127.0.0.1:7490"
//	feed = "websocket"            # or "poll"
//	poll_interval = 2             # seconds, poll feed only
//	log_path = "~/.local/state/cubespace/cubespace.log"
//	log_level = "info"
//	log_format = "text"           # or "json"
//	one_cube_per_visitor = true
//	save_timeout = 0              # seconds; 0 waits as long as the transport does
//	metrics_addr = ""             # e.g. "127.0.0.1:9464" to expose /metrics
//	tracing = "off"               # or "stdout"
//
// Every field is optional. Tilde expansion is applied to log_path.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//   - Unknown values for feed, tracing, or log_format
//
// Missing config files are NOT an error. CubeSpace works out of the box
// against a store on the default local port.
package config
