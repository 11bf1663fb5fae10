// Package corepipeadapter converts between corepipe.Message, the core
// pipeline's internal value, and types.LogEntry, the representation the
// existing monitors and sinks were built around. Keeping the conversion
// in one place lets monitors and sinks stay unchanged while becoming
// corepipe SourceDriver/DestinationDriver implementations.
package corepipeadapter

import (
	"logtrail/pkg/corepipe"
	"logtrail/pkg/types"
)

// ToMessage builds a corepipe.Message from an existing LogEntry, carrying
// its fields across as named Values.
func ToMessage(entry *types.LogEntry) *corepipe.Message {
	metadata := map[string]corepipe.Value{
		"message":     corepipe.StringValue(entry.Message),
		"level":       corepipe.StringValue(entry.Level),
		"source_type": corepipe.StringValue(entry.SourceType),
		"source_id":   corepipe.StringValue(entry.SourceID),
		"trace_id":    corepipe.StringValue(entry.TraceID),
		"span_id":     corepipe.StringValue(entry.SpanID),
	}
	for k, v := range entry.Labels {
		metadata["label."+k] = corepipe.StringValue(v)
	}

	msg := corepipe.NewFromSourceInput([]byte(entry.Message), metadata)
	msg.SendTime = entry.Timestamp
	msg.RecvTime = entry.ProcessedAt
	msg.Facility = types.FacilityUser
	msg.Severity = int(types.SeverityFromLevel(entry.Level))
	return msg
}

// ToLogEntry builds a LogEntry from a compiled Message, the inverse of
// ToMessage. Fields absent from msg's values fall back to their zero
// value; destinations that need tracing/label fidelity should read them
// directly from msg instead of round-tripping through LogEntry.
func ToLogEntry(msg *corepipe.Message) *types.LogEntry {
	get := func(key string) string {
		if v, ok := msg.Get(key); ok {
			return v.AsString()
		}
		return ""
	}

	level := get("level")
	if level == "" {
		level = types.LevelFromSeverity(msg.Severity)
	}

	entry := &types.LogEntry{
		Message:         get("message"),
		Level:           level,
		SourceType:      get("source_type"),
		SourceID:        get("source_id"),
		TraceID:         get("trace_id"),
		SpanID:          get("span_id"),
		RouteConnection: get("route_connection"),
		Timestamp:       msg.SendTime,
		ProcessedAt:     msg.RecvTime,
		Labels:          make(map[string]string),
		Fields:          make(map[string]interface{}),
	}
	return entry
}
