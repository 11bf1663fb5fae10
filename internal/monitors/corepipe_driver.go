package monitors

import (
	"context"

	"logtrail/internal/corepipeadapter"
	"logtrail/pkg/corepipe"
	"logtrail/pkg/positions"
	"logtrail/pkg/types"

	"github.com/sirupsen/logrus"
)

// channelDispatcher implements types.Dispatcher by converting every
// Handle call straight into a corepipe.Message and posting it to out,
// letting FileMonitor (and anything else built against types.Dispatcher)
// feed a ThreadedSource without modification.
type channelDispatcher struct {
	out chan *corepipe.Message
}

func newChannelDispatcher(buffer int) *channelDispatcher {
	return &channelDispatcher{out: make(chan *corepipe.Message, buffer)}
}

func (d *channelDispatcher) AddSink(types.Sink) {}

func (d *channelDispatcher) Handle(ctx context.Context, sourceType, sourceID, message string, labels map[string]string) error {
	entry := &types.LogEntry{
		Message:    message,
		SourceType: sourceType,
		SourceID:   sourceID,
		Labels:     labels,
	}
	msg := corepipeadapter.ToMessage(entry)
	select {
	case d.out <- msg:
		return nil
	case <-ctx.Done():
		msg.Unref()
		return ctx.Err()
	}
}

func (d *channelDispatcher) Start(ctx context.Context) error { return nil }
func (d *channelDispatcher) Stop() error                     { close(d.out); return nil }
func (d *channelDispatcher) GetStats() types.DispatcherStats  { return types.DispatcherStats{} }

// FileSourceDriver adapts FileMonitor to corepipe.SourceDriver: it drives
// FileMonitor with a channelDispatcher instead of the shared pipeline
// dispatcher, so tailed lines arrive as corepipe.Message values directly.
type FileSourceDriver struct {
	config          types.FileMonitorServiceConfig
	taskManager     types.TaskManager
	positionManager *positions.PositionBufferManager
	logger          *logrus.Logger

	monitor *FileMonitor
	disp    *channelDispatcher
}

// NewFileSourceDriver constructs a FileSourceDriver; Open builds and
// starts the underlying FileMonitor.
func NewFileSourceDriver(config types.FileMonitorServiceConfig, taskManager types.TaskManager, positionManager *positions.PositionBufferManager, logger *logrus.Logger) *FileSourceDriver {
	return &FileSourceDriver{config: config, taskManager: taskManager, positionManager: positionManager, logger: logger}
}

func (d *FileSourceDriver) Name() string { return "file" }

func (d *FileSourceDriver) Open(ctx context.Context) (<-chan *corepipe.Message, error) {
	d.disp = newChannelDispatcher(256)

	monitor, err := NewFileMonitor(d.config, d.disp, d.taskManager, d.positionManager, d.logger)
	if err != nil {
		return nil, err
	}
	d.monitor = monitor

	if err := monitor.Start(ctx); err != nil {
		return nil, err
	}
	return d.disp.out, nil
}

func (d *FileSourceDriver) Close() error {
	if d.monitor != nil {
		return d.monitor.Stop()
	}
	return nil
}
