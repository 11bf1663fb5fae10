// Package otlpsource implements a corepipe.SourceDriver that ingests
// logs over the OTLP/gRPC wire protocol (the same protocol the rest of
// the module already speaks on the tracing side via otlptracehttp),
// giving the pipeline a source for collectors and agents that export logs
// natively instead of writing to a file or container stdout.
package otlpsource

import (
	"context"
	"fmt"
	"net"

	"logtrail/pkg/corepipe"

	"github.com/sirupsen/logrus"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Driver is a corepipe.SourceDriver backed by a grpc.Server implementing
// the OTLP LogsService. Every ExportLogsServiceRequest is unpacked into
// individual corepipe.Message values, one per log record, tagged with the
// resource and scope attributes flattened onto the message.
type Driver struct {
	collogspb.UnimplementedLogsServiceServer

	addr   string
	logger *logrus.Logger

	server *grpc.Server
	out    chan *corepipe.Message
}

// NewDriver constructs an otlpsource.Driver listening on addr (e.g.
// ":4317", the conventional OTLP/gRPC port).
func NewDriver(addr string, logger *logrus.Logger) *Driver {
	return &Driver{addr: addr, logger: logger}
}

func (d *Driver) Name() string { return "otlp" }

// Open starts the gRPC server and returns the channel messages arrive on.
// The server stops when ctx is cancelled.
func (d *Driver) Open(ctx context.Context) (<-chan *corepipe.Message, error) {
	lis, err := net.Listen("tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("otlp source: listen %s: %w", d.addr, err)
	}

	d.out = make(chan *corepipe.Message, 256)
	d.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(d.server, d)

	go func() {
		<-ctx.Done()
		d.server.GracefulStop()
	}()

	go func() {
		if err := d.server.Serve(lis); err != nil && d.logger != nil {
			d.logger.WithError(err).Error("otlp source: serve failed")
		}
		close(d.out)
	}()

	return d.out, nil
}

// Export implements collogspb.LogsServiceServer. It never blocks
// indefinitely: if the downstream channel is full it reports
// ResourceExhausted so the exporter backs off and retries, the same
// signal GRPCStatusToFlushResult maps back to FlushThrottled on the send
// side.
func (d *Driver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	var rejected int32

	for _, rl := range req.GetResourceLogs() {
		resourceAttrs := attributesToValues(rl.GetResource().GetAttributes())
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				msg := recordToMessage(rec, resourceAttrs)
				select {
				case d.out <- msg:
				case <-ctx.Done():
					msg.Unref()
					return nil, status.Error(codes.DeadlineExceeded, ctx.Err().Error())
				default:
					msg.Unref()
					rejected++
				}
			}
		}
	}

	if rejected > 0 {
		return &collogspb.ExportLogsServiceResponse{
			PartialSuccess: &collogspb.ExportLogsPartialSuccess{
				RejectedLogRecords: int64(rejected),
				ErrorMessage:       "downstream pipeline backpressure",
			},
		}, nil
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

func recordToMessage(rec *logspb.LogRecord, resourceAttrs map[string]corepipe.Value) *corepipe.Message {
	metadata := make(map[string]corepipe.Value, len(resourceAttrs)+4)
	for k, v := range resourceAttrs {
		metadata[k] = v
	}
	for k, v := range attributesToValues(rec.GetAttributes()) {
		metadata[k] = v
	}
	metadata["severity_text"] = corepipe.StringValue(rec.GetSeverityText())
	metadata["severity_number"] = corepipe.IntegerValue(int64(rec.GetSeverityNumber()))

	body := rec.GetBody().GetStringValue()
	msg := corepipe.NewFromSourceInput([]byte(body), metadata)
	msg.Severity = int(rec.GetSeverityNumber())
	return msg
}

func attributesToValues(attrs []*commonpb.KeyValue) map[string]corepipe.Value {
	out := make(map[string]corepipe.Value, len(attrs))
	for _, a := range attrs {
		out[a.GetKey()] = corepipe.StringValue(a.GetValue().GetStringValue())
	}
	return out
}

// Close stops the gRPC server if still running.
func (d *Driver) Close() error {
	if d.server != nil {
		d.server.Stop()
	}
	return nil
}
