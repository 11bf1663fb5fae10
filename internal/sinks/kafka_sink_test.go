package sinks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"logtrail/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKafkaSinkConfiguration tests basic Kafka sink configuration
func TestKafkaSinkConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		config      types.KafkaSinkConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid configuration",
			config: types.KafkaSinkConfig{
				Enabled:         true,
				Brokers:         []string{"localhost:9092"},
				Topic:           "test-topic",
				Compression:     "snappy",
				BatchSize:       100,
				BatchTimeout:    "5s",
				QueueSize:       1000,
				MaxMessageBytes: 1048576,
				RequiredAcks:    1,
				Timeout:         "30s",
				RetryMax:        3,
				Partitioning: types.PartitioningConfig{
					Enabled:  true,
					Strategy: "hash",
					KeyField: "tenant_id",
				},
				BackpressureConfig: types.BackpressureConfig{
					Enabled:                 true,
					QueueWarningThreshold:   0.75,
					QueueCriticalThreshold:  0.90,
					QueueEmergencyThreshold: 0.95,
				},
			},
			expectError: false,
		},
		{
			name: "empty brokers list",
			config: types.KafkaSinkConfig{
				Enabled:  true,
				Brokers:  []string{},
				Topic:    "test-topic",
				QueueSize: 1000,
			},
			expectError: true,
			errorMsg:    "no brokers configured",
		},
		{
			name: "invalid queue size",
			config: types.KafkaSinkConfig{
				Enabled:   true,
				Brokers:   []string{"localhost:9092"},
				Topic:     "test-topic",
				QueueSize: 0,
			},
			expectError: true,
			errorMsg:    "invalid queue size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetLevel(logrus.ErrorLevel)

			_, err := NewKafkaSink(tt.config, logger, nil, nil)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestKafkaSinkTopicRouting tests priority-based topic routing
func TestKafkaSinkTopicRouting(t *testing.T) {
	tests := []struct {
		name          string
		entry         types.LogEntry
		expectedTopic string
	}{
		{
			name: "error level routes to high-priority",
			entry: types.LogEntry{
				Message: "Error occurred",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"level": "error",
				}),
			},
			expectedTopic: "logs-high-priority",
		},
		{
			name: "fatal level routes to high-priority",
			entry: types.LogEntry{
				Message: "Fatal error",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"level": "fatal",
				}),
			},
			expectedTopic: "logs-high-priority",
		},
		{
			name: "debug level routes to low-priority",
			entry: types.LogEntry{
				Message: "Debug message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"level": "debug",
				}),
			},
			expectedTopic: "logs-low-priority",
		},
		{
			name: "trace level routes to low-priority",
			entry: types.LogEntry{
				Message: "Trace message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"level": "trace",
				}),
			},
			expectedTopic: "logs-low-priority",
		},
		{
			name: "info level routes to default topic",
			entry: types.LogEntry{
				Message: "Info message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"level": "info",
				}),
			},
			expectedTopic: "logs",
		},
		{
			name: "no level label routes to default topic",
			entry: types.LogEntry{
				Message: "Plain message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{},
				}),
			expectedTopic: "logs",
		},
	}

	// NOTE: We can't actually create a Kafka sink here without a real Kafka broker
	// So we'll create a mock or test the determineTopic function directly
	// For now, we'll skip this test in CI/CD environments

	if testing.Short() {
		t.Skip("Skipping Kafka integration test in short mode")
	}

	for i := range tests {
		tt := &tests[i]
		t.Run(tt.name, func(t *testing.T) {
			// This would require a mock Kafka broker or testing the internal function
			// For now, we document the expected behavior
			assert.NotEmpty(t, tt.expectedTopic, "Expected topic should be defined")
		})
	}
}

// TestKafkaSinkPartitionKeyGeneration tests partition key generation
func TestKafkaSinkPartitionKeyGeneration(t *testing.T) {
	tests := []struct {
		name           string
		entry          types.LogEntry
		strategy       string
		keyField       string
		expectNonEmpty bool
	}{
		{
			name: "hash strategy with tenant_id",
			entry: types.LogEntry{
				Message: "Test message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"tenant_id": "tenant-123",
				}),
			},
			strategy:       "hash",
			keyField:       "tenant_id",
			expectNonEmpty: true,
		},
		{
			name: "hash strategy with source_id",
			entry: types.LogEntry{
				Message: "Test message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{
					"source_id": "source-456",
				}),
			},
			strategy:       "hash",
			keyField:       "source_id",
			expectNonEmpty: true,
		},
		{
			name: "hash strategy with missing key field",
			entry: types.LogEntry{
				Message: "Test message",
				Labels: types.NewLabelsCOWFromMap(map[string]string{},
				}),
			strategy:       "hash",
			keyField:       "tenant_id",
			expectNonEmpty: false,
		},
	}

	for i := range tests {
		tt := &tests[i]
		t.Run(tt.name, func(t *testing.T) {
			// Test partition key generation logic
			// This would require exposing the determinePartitionKey function or testing via integration
			if tt.expectNonEmpty {
				assert.NotEmpty(t, tt.keyField, "Key field should be defined")
			}
		})
	}
}

// TestKafkaSinkHealthCheck tests the IsHealthy method
func TestKafkaSinkHealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Kafka health check test in short mode")
	}

	// This test requires a real Kafka broker
	// In a real test environment, you would use testcontainers or docker-compose
	t.Run("health check returns true for healthy sink", func(t *testing.T) {
		// Mock test - in real scenario, create sink and verify health
		assert.True(t, true, "Placeholder for health check test")
	})
}

// TestKafkaSinkSendWithContext tests context cancellation
func TestKafkaSinkSendWithContext(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Kafka context test in short mode")
	}

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// Wait for context to expire
		<-ctx.Done()

		assert.Error(t, ctx.Err(), "Context should be cancelled")
	})
}

// TestKafkaSinkCompressionTypes tests different compression algorithms
func TestKafkaSinkCompressionTypes(t *testing.T) {
	compressionTypes := []string{"gzip", "snappy", "lz4", "zstd", "none"}

	for _, compression := range compressionTypes {
		t.Run("compression_"+compression, func(t *testing.T) {
			config := types.KafkaSinkConfig{
				Enabled:      true,
				Brokers:      []string{"localhost:9092"},
				Topic:        "test-topic",
				Compression:  compression,
				QueueSize:    1000,
			}

			logger := logrus.New()
			logger.SetLevel(logrus.ErrorLevel)

			// Test that configuration accepts the compression type
			assert.Contains(t, []string{"gzip", "snappy", "lz4", "zstd", "none"}, config.Compression)
		})
	}
}

// TestKafkaSinkBackpressureThresholds tests backpressure configuration
func TestKafkaSinkBackpressureThresholds(t *testing.T) {
	tests := []struct {
		name                    string
		queueWarningThreshold   float64
		queueCriticalThreshold  float64
		queueEmergencyThreshold float64
		valid                   bool
	}{
		{
			name:                    "valid thresholds",
			queueWarningThreshold:   0.75,
			queueCriticalThreshold:  0.90,
			queueEmergencyThreshold: 0.95,
			valid:                   true,
		},
		{
			name:                    "thresholds in ascending order",
			queueWarningThreshold:   0.60,
			queueCriticalThreshold:  0.80,
			queueEmergencyThreshold: 0.95,
			valid:                   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := types.BackpressureConfig{
				Enabled:                 true,
				QueueWarningThreshold:   tt.queueWarningThreshold,
				QueueCriticalThreshold:  tt.queueCriticalThreshold,
				QueueEmergencyThreshold: tt.queueEmergencyThreshold,
			}

			// Validate threshold ordering
			if tt.valid {
				assert.True(t, config.QueueWarningThreshold < config.QueueCriticalThreshold)
				assert.True(t, config.QueueCriticalThreshold < config.QueueEmergencyThreshold)
			}
		})
	}
}

// TestKafkaSinkStop tests graceful shutdown
func TestKafkaSinkStop(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}

	config := types.KafkaSinkConfig{
		Enabled:   true,
		Brokers:   []string{"localhost:9092"},
		Topic:     "test-stop",
		QueueSize: 1000,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sink, err := NewKafkaSink(config, logger, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = sink.Start(ctx)
	require.NoError(t, err)

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	// Stop should not error
	err = sink.Stop()
	assert.NoError(t, err)

	// Double stop should not panic
	err = sink.Stop()
	assert.NoError(t, err)
}

// TestKafkaSinkGetStats tests statistics retrieval
func TestKafkaSinkGetStats(t *testing.T) {
	config := types.KafkaSinkConfig{
		Enabled:   true,
		Brokers:   []string{"localhost:9092"},
		Topic:     "test-stats",
		QueueSize: 1000,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sink, err := NewKafkaSink(config, logger, nil, nil)
	require.NoError(t, err)

	stats := sink.GetStats()
	assert.NotNil(t, stats)
	assert.Contains(t, stats, "enabled")
	assert.Contains(t, stats, "running")
	assert.Contains(t, stats, "queue_size")
	assert.Contains(t, stats, "queue_capacity")
	assert.Contains(t, stats, "queue_utilization")
	assert.Contains(t, stats, "sent_total")
	assert.Contains(t, stats, "error_total")
	assert.Contains(t, stats, "dropped_total")
	assert.Contains(t, stats, "backpressure_count")
	assert.Contains(t, stats, "circuit_breaker")

	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, false, stats["running"])
	assert.Equal(t, 1000, stats["queue_capacity"])
}

// TestKafkaSinkQueueMetrics tests queue utilization metrics
func TestKafkaSinkQueueMetrics(t *testing.T) {
	config := types.KafkaSinkConfig{
		Enabled:   true,
		Brokers:   []string{"localhost:9092"},
		Topic:     "test-queue-metrics",
		QueueSize: 100,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sink, err := NewKafkaSink(config, logger, nil, nil)
	require.NoError(t, err)

	stats := sink.GetStats()
	queueSize := stats["queue_size"].(int)
	queueCapacity := stats["queue_capacity"].(int)
	queueUtilization := stats["queue_utilization"].(float64)

	assert.Equal(t, 0, queueSize)
	assert.Equal(t, 100, queueCapacity)
	assert.Equal(t, 0.0, queueUtilization)
}

// Benchmark tests
func BenchmarkKafkaSinkSendSingleEntry(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	entry := types.LogEntry{
		Message:   "Benchmark test message",
		Timestamp: time.Now(),
		Labels: types.NewLabelsCOWFromMap(map[string]string{
			"level":     "info",
			"tenant_id": "bench-tenant",
				}),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		// Simulate entry processing
		_ = entry.Message
		_ = entry.Labels["level"]
	}
}

func BenchmarkKafkaSinkSendBatch(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	batchSizes := []int{10, 100, 1000}

	for _, size := range batchSizes {
		b.Run(fmt.Sprintf("batch_%d", size), func(b *testing.B) {
			entries := make([]types.LogEntry, size)
			for i := range entries {
				entries[i] = types.LogEntry{
					Message:   "Benchmark batch message",
					Timestamp: time.Now(),
					Labels: types.NewLabelsCOWFromMap(map[string]string{
						"level":     "info",
						"tenant_id": "bench-tenant",
				}),
				}
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				for j := range entries {
					_ = entries[j].Message
				}
			}
		})
	}
}

func BenchmarkKafkaSinkTopicDetermination(b *testing.B) {
	config := types.KafkaSinkConfig{
		Enabled:   true,
		Brokers:   []string{"localhost:9092"},
		Topic:     "default",
		QueueSize: 1000,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sink, err := NewKafkaSink(config, logger, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	entries := []types.LogEntry{
		{Labels: types.NewLabelsCOWFromMap(map[string]string{"level": "error"}},
		{Labels: map[string]string{"level": "info"}},
		{Labels: map[string]string{"level": "debug"}},
		{Labels: map[string]string{"kafka_topic": "custom"}},
		{Labels: map[string]string{}},
				}),

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for j := range entries {
			_ = sink.determineTopic(&entries[j])
		}
	}
}

func BenchmarkKafkaSinkPartitionKeyGeneration(b *testing.B) {
	config := types.KafkaSinkConfig{
		Enabled:   true,
		Brokers:   []string{"localhost:9092"},
		Topic:     "test",
		QueueSize: 1000,
		Partitioning: types.PartitioningConfig{
			Enabled:  true,
			Strategy: "hash",
			KeyField: "tenant_id",
		},
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sink, err := NewKafkaSink(config, logger, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	entry := types.LogEntry{
		SourceID: "test-source",
		Labels: types.NewLabelsCOWFromMap(map[string]string{
			"tenant_id": "tenant-123",
				}),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = sink.determinePartitionKey(&entry)
	}
}
