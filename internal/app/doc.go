// Package app is the composition root for the CubeSpace client.
//
// # Overview
//
// Run wires configuration, logging, telemetry, the document store client,
// the data provider, the flow session and the terminal UI, then blocks
// until the user quits or the context is cancelled.
//
// # Startup
//
//  1. Load ~/.config/cubespace/config.toml (missing file means defaults)
//  2. Open the client log file; the terminal belongs to the UI
//  3. Build the telemetry port: log + Prometheus, plus an OpenTelemetry
//     tracer when tracing = "stdout" (spans go to <log>.traces.json)
//  4. Optionally serve /metrics on metrics_addr
//  5. Create the docstore client and a state.Provider over it, and start
//     the provider's subscriptions in the background
//  6. Create the flow.Session with the visitor policy and save timeout
//  7. Load prefs and run the UI
//
// # Components
//
//   - app.go: Run and telemetry assembly
//   - metrics.go: the optional Prometheus listener
//
// # Error Handling
//
// Run returns errors for a bad config, an unwritable log file, or a bad
// store URL. Everything after startup is recoverable: a store that cannot
// be reached puts the provider into fallback mode, and save failures are
// shown on the owner card.
//
// # Usage Example
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := app.Run(ctx, app.Options{}); err != nil {
//		log.Fatalf("cubespace failed: %v", err)
//	}
package app
