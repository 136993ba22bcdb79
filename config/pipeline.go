package config

import (
	"time"

	"github.com/spf13/viper"
)

// Pipeline represents the processing pipeline configuration.
type Pipeline struct {
	MaxWorkers         int
	QueueSize          int
	TaskTimeout        time.Duration
	PollInterval       time.Duration
	BatchSize          int
	StalenessThreshold time.Duration
	ReclaimInterval    time.Duration
}

// getPipelineConfig returns pipeline config
func getPipelineConfig(v *viper.Viper) *Pipeline {
	return &Pipeline{
		MaxWorkers:         getIntOrDefault(v, "pipeline.max_workers", 4),
		QueueSize:          getIntOrDefault(v, "pipeline.queue_size", 256),
		TaskTimeout:        getDurationOrDefault(v, "pipeline.task_timeout", 5*time.Minute),
		PollInterval:       getDurationOrDefault(v, "pipeline.poll_interval", time.Second),
		BatchSize:          getIntOrDefault(v, "pipeline.batch_size", 16),
		StalenessThreshold: getDurationOrDefault(v, "pipeline.staleness_threshold", 10*time.Minute),
		ReclaimInterval:    getDurationOrDefault(v, "pipeline.reclaim_interval", time.Minute),
	}
}
