// Package corepipe implements the log processing core: the Message type
// with copy-on-write mutation semantics, the Pipe graph abstraction,
// the fan-out Multiplexer, the PipelineCompiler that turns a declarative
// Configuration into an executable graph (the Center), and the
// ThreadedWorker substrate that bridges blocking source/destination
// driver code with the cooperative main loop.
//
// Everything a concrete driver needs to plug in lives behind two small
// interfaces, SourceDriver and DestinationDriver (driver.go); wire
// protocols, config file syntax, and credential resolution are the
// caller's responsibility.
package corepipe
