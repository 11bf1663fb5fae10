package app

import (
	"fmt"

	"logtrail/internal/monitors"
	"logtrail/internal/sinks"
	"logtrail/pkg/corepipe"
	"logtrail/pkg/tracing"
)

// buildCorepipeConfiguration assembles a corepipe.Configuration mirroring
// the legacy dispatcher's wiring: the file monitor as the single source,
// every configured sink as a destination, and one CATCHALL connection per
// destination fanning every tailed line out to it. This is what lets the
// spec'd PipelineCompiler/Center graph run against real inputs and outputs
// instead of sitting unexercised as a standalone library.
func (app *App) buildCorepipeConfiguration() (*corepipe.Configuration, error) {
	if !app.config.FileMonitorService.Enabled {
		return nil, fmt.Errorf("corepipe wiring requires the file monitor to be enabled")
	}
	if len(app.sinks) == 0 {
		return nil, fmt.Errorf("corepipe wiring requires at least one sink")
	}

	cfg := corepipe.NewConfiguration()

	driver := monitors.NewFileSourceDriver(app.config.FileMonitorService, app.taskManager, app.positionManager, app.logger)
	cfg.Sources["file"] = &corepipe.SourceGroup{
		Name:       "file",
		Driver:     driver,
		WindowSize: app.config.FileMonitorService.ReadBufferSize,
	}

	for i, sink := range app.sinks {
		name := fmt.Sprintf("sink-%d", i)
		driver := sinks.NewSinkDestinationDriver(name, sink)
		if app.tracingManager != nil {
			driver = driver.WithTracing(tracing.NewTraceableDispatcher(name, app.tracingManager.GetTracer(), app.logger))
		}
		cfg.Destinations[name] = &corepipe.DestinationGroup{
			Name:       name,
			Driver:     driver,
			QueueSize:  app.config.Dispatcher.QueueSize,
			BatchBytes: app.config.Dispatcher.BatchSize,
		}
		cfg.Connections = append(cfg.Connections, &corepipe.Connection{
			Name:  "corepipe-" + name,
			Flags: corepipe.ConnCatchAll,
			Items: []corepipe.PipeItem{{Kind: corepipe.EndpointDestination, Name: name}},
		})
	}

	return cfg, nil
}

// initCorepipe compiles the corepipe graph when enabled in configuration.
// A compile failure is logged but not fatal: the legacy dispatcher path
// keeps owning delivery either way.
func (app *App) initCorepipe() {
	if !app.config.Corepipe.Enabled {
		return
	}

	pcfg, err := app.buildCorepipeConfiguration()
	if err != nil {
		app.logger.WithError(err).Warn("corepipe graph not wired")
		return
	}

	center := corepipe.NewCenter(app.logger)
	if err := center.Compile(pcfg); err != nil {
		app.logger.WithError(err).Warn("corepipe graph failed to compile")
		return
	}
	app.corepipeCenter = center
	app.logger.Info("corepipe graph compiled")
}
