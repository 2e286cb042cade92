package services

import "context"

// ProgressSink receives live updates emitted while a service builds or
// exports a dataset. The websocket hub satisfies it; services tolerate
// a nil sink so batch callers can run without one.
type ProgressSink interface {
	BroadcastFetchProgress(ctx context.Context, job, step string, current, total int)
	BroadcastRefresh(ctx context.Context, module string, rows int)
	BroadcastError(ctx context.Context, job, message string)
}

// notifyProgress forwards a fetch step to the sink when one is attached.
func notifyProgress(ctx context.Context, sink ProgressSink, job, step string, current, total int) {
	if sink != nil {
		sink.BroadcastFetchProgress(ctx, job, step, current, total)
	}
}

// notifyRefresh forwards a completed refresh to the sink when one is attached.
func notifyRefresh(ctx context.Context, sink ProgressSink, module string, rows int) {
	if sink != nil {
		sink.BroadcastRefresh(ctx, module, rows)
	}
}

// notifyError forwards a job failure to the sink when one is attached.
func notifyError(ctx context.Context, sink ProgressSink, job, message string) {
	if sink != nil {
		sink.BroadcastError(ctx, job, message)
	}
}
