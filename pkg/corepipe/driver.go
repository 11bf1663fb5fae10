package corepipe

import "context"

// SourceDriver is the plug-in point for a message origin: file tailing,
// container log discovery, Kafka consumption, OTLP ingestion, the internal
// mark timer. A driver owns its own I/O loop; ThreadedSource only supplies
// the WakeupCondition-gated handoff into the pipe graph and the blocking
// substrate to run that loop on.
//
// Drivers never see a Pipe directly: they hand messages to ThreadedSource
// via the channel returned from Open, keeping wire/transport concerns out
// of corepipe entirely (the caller's responsibility, per the ambient
// contract this package assumes).
type SourceDriver interface {
	// Name identifies the driver for logging and metrics labels.
	Name() string

	// Open starts the driver's I/O loop against ctx and returns a channel
	// the driver sends decoded messages on. The channel is closed when the
	// driver's loop exits, whether from ctx cancellation or a permanent
	// error.
	Open(ctx context.Context) (<-chan *Message, error)

	// Close requests the driver's loop to stop and releases its resources.
	// It is safe to call after the channel from Open has already closed.
	Close() error
}

// FlushMode tells a DestinationDriver whether a Send call may buffer the
// message for a later batched flush or must deliver it before returning.
type FlushMode int

const (
	FlushBuffered FlushMode = iota
	FlushImmediate
)

// FlushResult is the outcome ThreadedDestination uses to decide whether to
// advance the ack window, retry, or drop into the dead-letter sink. It is
// deliberately coarser than any one transport's status codes: each driver
// maps its own wire-level errors (HTTP status, Kafka error code, gRPC
// status) down to one of these before returning.
type FlushResult int

const (
	// FlushOK: the batch was accepted. Ack and advance the window.
	FlushOK FlushResult = iota
	// FlushRetryable: a transient failure (connection reset, 5xx, broker
	// not available). Retry after time_reopen without acking.
	FlushRetryable
	// FlushPermanent: the batch was rejected for a reason retrying cannot
	// fix (4xx other than 429, schema rejection, auth failure). Ack (so
	// the source doesn't redeliver forever) and route to the DLQ.
	FlushPermanent
	// FlushThrottled: the destination asked for backoff (429, Kafka
	// QueueFullError). Retry after a backoff-specific delay, not
	// time_reopen.
	FlushThrottled
)

func (r FlushResult) String() string {
	switch r {
	case FlushOK:
		return "ok"
	case FlushRetryable:
		return "retryable"
	case FlushPermanent:
		return "permanent"
	case FlushThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// DestinationDriver is the plug-in point for a message sink: Kafka, Loki,
// Elasticsearch, Splunk HEC, local file. ThreadedDestination owns batching,
// retry/time_reopen scheduling, and FlushResult interpretation; the driver
// only encodes and transmits.
type DestinationDriver interface {
	Name() string

	// Send hands one message to the driver. mode signals whether it may
	// be buffered for a later Flush or must go out immediately (flagged
	// by HARD_FLOW_CONTROL destinations that disable batching).
	Send(ctx context.Context, msg *Message, mode FlushMode) error

	// Flush forces any buffered messages out and reports the outcome.
	Flush(ctx context.Context) FlushResult

	Close() error
}

// GRPCStatusToFlushResult maps a gRPC/OTLP status code (as its numeric
// value, to avoid importing google.golang.org/grpc/codes into this
// transport-agnostic package) to a FlushResult. Codes follow
// https://grpc.github.io/grpc/core/md_doc_statuscodes.html.
//
// The mapping is the decision table: unavailable/cancelled/deadline/
// aborted/out-of-range/data-loss are temporary (NotConnected, here
// FlushRetryable); unknown/invalid-argument/not-found/permission/
// unimplemented/internal are permanent (Drop, here FlushPermanent).
// resource-exhausted is temporary by default (FlushThrottled) since this
// helper doesn't parse status details to distinguish the "else Drop"
// case; a caller that does have the details should resolve it directly
// rather than through this table.
func GRPCStatusToFlushResult(code int) FlushResult {
	switch code {
	case 0: // OK
		return FlushOK
	case 8: // ResourceExhausted
		return FlushThrottled
	case 1, 4, 10, 11, 14, 15: // Cancelled, DeadlineExceeded, Aborted, OutOfRange, Unavailable, DataLoss
		return FlushRetryable
	default: // Unknown, InvalidArgument, NotFound, AlreadyExists, PermissionDenied,
		// FailedPrecondition, Unimplemented, Internal, Unauthenticated, ...
		return FlushPermanent
	}
}
