// Package app provides application initialization and lifecycle management
// for the BCB Radar dashboard backend. It wires configuration loading,
// logging, observability, the upstream BCB client, the dashboard services
// and the HTTP transport together, and owns graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from files and environment
//	2. Initialize logging and OpenTelemetry
//	3. Create the shared BCB API client and websocket hub
//	4. Initialize one service per dashboard module
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM to ensure:
//
//	- Active requests are completed
//	- WebSocket connections are closed cleanly
//	- Final metrics are flushed
//
// All initialization errors are returned to the caller. The app does not
// call os.Exit() directly, so main controls the exit process.
package app
