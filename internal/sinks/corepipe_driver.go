package sinks

import (
	"context"

	"logtrail/internal/corepipeadapter"
	"logtrail/pkg/corepipe"
	"logtrail/pkg/tracing"
	"logtrail/pkg/types"
)

// KafkaDestinationDriver adapts an existing KafkaSink to corepipe's
// DestinationDriver: KafkaSink already owns its own batching, retry, and
// dead-letter logic (see KafkaSink.Send/flushBatch), so the driver's job
// is purely the Message<->LogEntry conversion and handing the result
// straight through. ThreadedDestination's own batching still runs, but
// degenerates to a thin pass-through in front of KafkaSink's queue.
type KafkaDestinationDriver struct {
	sink *KafkaSink
}

// NewKafkaDestinationDriver wraps an already-started KafkaSink.
func NewKafkaDestinationDriver(sink *KafkaSink) *KafkaDestinationDriver {
	return &KafkaDestinationDriver{sink: sink}
}

func (d *KafkaDestinationDriver) Name() string { return "kafka" }

func (d *KafkaDestinationDriver) Send(ctx context.Context, msg *corepipe.Message, _ corepipe.FlushMode) error {
	entry := corepipeadapter.ToLogEntry(msg)
	return d.sink.Send(ctx, []types.LogEntry{*entry})
}

// Flush is a no-op: KafkaSink flushes on its own timer/batch-size policy.
// Since the driver can't observe that result synchronously, it always
// reports success; KafkaSink's own DLQ and backpressure metrics are the
// source of truth for delivery failures.
func (d *KafkaDestinationDriver) Flush(ctx context.Context) corepipe.FlushResult {
	return corepipe.FlushOK
}

func (d *KafkaDestinationDriver) Close() error {
	return d.sink.Stop()
}

// SinkDestinationDriver adapts any types.Sink (LokiSink, LocalFileSink,
// ElasticsearchSink, SplunkSink, ...) to corepipe.DestinationDriver, for
// destinations with no dedicated pass-through adapter of their own.
type SinkDestinationDriver struct {
	name   string
	sink   types.Sink
	tracer *tracing.TraceableDispatcher // nil when tracing is disabled
}

// NewSinkDestinationDriver wraps an already-started types.Sink.
func NewSinkDestinationDriver(name string, sink types.Sink) *SinkDestinationDriver {
	return &SinkDestinationDriver{name: name, sink: sink}
}

// WithTracing attaches a TraceableDispatcher so every Send is wrapped in
// its own span; call before the driver is handed to the Center.
func (d *SinkDestinationDriver) WithTracing(td *tracing.TraceableDispatcher) *SinkDestinationDriver {
	d.tracer = td
	return d
}

func (d *SinkDestinationDriver) Name() string { return d.name }

func (d *SinkDestinationDriver) Send(ctx context.Context, msg *corepipe.Message, _ corepipe.FlushMode) error {
	entry := corepipeadapter.ToLogEntry(msg)
	send := func(ctx context.Context) error {
		return d.sink.Send(ctx, []types.LogEntry{*entry})
	}
	if d.tracer != nil {
		return d.tracer.Wrap(ctx, send)
	}
	return send(ctx)
}

// Flush reports FlushRetryable when the sink's own health check is
// failing, since types.Sink exposes no synchronous flush result to map
// through GRPCStatusToFlushResult or an equivalent table.
func (d *SinkDestinationDriver) Flush(ctx context.Context) corepipe.FlushResult {
	if !d.sink.IsHealthy() {
		return corepipe.FlushRetryable
	}
	return corepipe.FlushOK
}

func (d *SinkDestinationDriver) Close() error {
	return d.sink.Stop()
}
