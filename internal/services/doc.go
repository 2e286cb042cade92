// Package services implements the business logic behind the dashboard
// API: one service per data module (payments, series, ifdata, rates,
// expectations, delinquency) plus health. Services fetch from the BCB
// client, run the transformation layer over the results, and return
// view models that handlers render and export without further shaping.
//
// # Common Service Pattern
//
// Services hold their collaborators and a logger, take context on every
// operation, and never keep request state between calls:
//
//	type ModuleService struct {
//	    client *bcb.Client
//	    logger *slog.Logger
//	}
//
//	func (s *ModuleService) Operation(ctx context.Context, p Params) (*View, error) {
//	    t, err := s.client.Fetch(ctx, ...)
//	    if err != nil {
//	        return nil, fmt.Errorf("fetch: %w", err)
//	    }
//	    ...
//	}
//
// # Error Handling
//
// Empty upstream results are legitimate data states and come back as
// ErrNoData, not transport failures. Malformed upstream tables surface
// as *transform.MissingColumnError so the HTTP layer can report a
// contract violation instead of an availability gap. Per-item failures
// inside fan-out loads (one state, one indicator) are logged, reported
// on the progress stream, and skipped.
package services
