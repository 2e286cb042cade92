// Package http implements the HTTP handlers of the dashboard API.
// It is a thin layer between transport and the report services: handlers
// parse and validate request parameters, delegate to a service, and render
// the result, keeping all business logic in the service layer.
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → BCB Client
//	                                              ↓
//	HTTP Response ← Handler ← Service View Model ←┘
//
// # Handler Structure
//
// Each dashboard module gets one handler with a Routes() chi.Router the
// application mounts under /api. Handlers follow this pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    // 1. Parse and validate request parameters
//	    // 2. Call the service layer
//	    // 3. Map service sentinel errors to API errors
//	    // 4. Render the success envelope
//	}
//
// Success responses share the envelope:
//
//	{"status": "success", "data": ...}
//
// # Error Handling
//
// Service sentinel errors are mapped per endpoint; everything else goes
// through the shared ErrorHandler, which renders RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "No data available for the requested period",
//	    "instance": "/api/payments/overview"
//	}
//
// # Downloads
//
// Export endpoints serve the research downloads. The format query parameter
// selects the encoding: csv streams the Brazilian profile (semicolon
// delimiter, decimal comma, UTF-8 BOM), xlsx streams a single-sheet
// workbook. Long-running exports carry an X-Job-ID header matching the
// progress messages broadcast on /ws.
//
// # WebSocket Support
//
// The websocket handler upgrades /ws connections and registers clients with
// the broadcast hub; fetch-job progress, refresh and error messages flow
// from the services through the hub to every connected dashboard.
package http
