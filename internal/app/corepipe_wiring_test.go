package app

import (
	"context"
	"testing"

	"logtrail/pkg/corepipe"
	"logtrail/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct{ healthy bool }

func (f *fakeSink) Start(ctx context.Context) error                   { return nil }
func (f *fakeSink) Send(ctx context.Context, _ []types.LogEntry) error { return nil }
func (f *fakeSink) Stop() error                                       { return nil }
func (f *fakeSink) IsHealthy() bool                                   { return f.healthy }

func TestBuildCorepipeConfiguration_RequiresFileMonitorAndSinks(t *testing.T) {
	app := &App{config: &types.Config{}, logger: logrus.New()}

	_, err := app.buildCorepipeConfiguration()
	require.Error(t, err, "file monitor disabled and no sinks")

	app.config.FileMonitorService.Enabled = true
	_, err = app.buildCorepipeConfiguration()
	require.Error(t, err, "still no sinks configured")
}

func TestBuildCorepipeConfiguration_WiresSourceAndDestinations(t *testing.T) {
	app := &App{
		config: &types.Config{},
		logger: logrus.New(),
		sinks:  []types.Sink{&fakeSink{healthy: true}, &fakeSink{healthy: true}},
	}
	app.config.FileMonitorService.Enabled = true
	app.config.FileMonitorService.ReadBufferSize = 64

	cfg, err := app.buildCorepipeConfiguration()
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 1)
	assert.Len(t, cfg.Destinations, 2)
	require.Len(t, cfg.Connections, 2)
	for _, conn := range cfg.Connections {
		assert.NotZero(t, conn.Flags&corepipe.ConnCatchAll, "every corepipe-wired destination connection must be CATCHALL")
	}
}

func TestInitCorepipe_DisabledByDefault(t *testing.T) {
	app := &App{config: &types.Config{}, logger: logrus.New()}
	app.initCorepipe()
	assert.Nil(t, app.corepipeCenter, "corepipe graph must stay unwired unless explicitly enabled")
}

func TestInitCorepipe_CompilesWhenEnabled(t *testing.T) {
	app := &App{
		config: &types.Config{},
		logger: logrus.New(),
		sinks:  []types.Sink{&fakeSink{healthy: true}},
	}
	app.config.Corepipe.Enabled = true
	app.config.FileMonitorService.Enabled = true

	app.initCorepipe()
	require.NotNil(t, app.corepipeCenter)
	assert.NotEmpty(t, app.corepipeCenter.InitializedPipes())
}
