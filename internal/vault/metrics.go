package vault

import (
	"sync"
	"time"
)

// Pipeline stage names recorded by the engine
const (
	StageCollect    = "collect"
	StageSerialize  = "serialize"
	StageCompress   = "compress"
	StageDeriveKey  = "derive_key"
	StageEncrypt    = "encrypt"
	StageWrite      = "write"
	StageRead       = "read"
	StageDecrypt    = "decrypt"
	StageDecompress = "decompress"
	StageDecode     = "decode"
	StageRestore    = "restore"
)

// StageMetric captures one pipeline stage of one operation
type StageMetric struct {
	OperationID string        `json:"operation_id"`
	Stage       string        `json:"stage"`
	Duration    time.Duration `json:"duration"`
	Bytes       int64         `json:"bytes"`
}

// MetricsCollector accumulates per-stage timings and byte counts. It is safe
// for concurrent use, though the guard keeps operations sequential in
// practice.
type MetricsCollector struct {
	mu     sync.RWMutex
	stages []StageMetric
}

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordStage appends one stage measurement
func (mc *MetricsCollector) RecordStage(operationID, stage string, duration time.Duration, bytes int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.stages = append(mc.stages, StageMetric{
		OperationID: operationID,
		Stage:       stage,
		Duration:    duration,
		Bytes:       bytes,
	})
}

// Stages returns a copy of every recorded measurement
func (mc *MetricsCollector) Stages() []StageMetric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]StageMetric, len(mc.stages))
	copy(out, mc.stages)
	return out
}

// OperationStages returns the measurements recorded for one operation
func (mc *MetricsCollector) OperationStages(operationID string) []StageMetric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	var out []StageMetric
	for _, s := range mc.stages {
		if s.OperationID == operationID {
			out = append(out, s)
		}
	}
	return out
}

// TotalDuration sums the recorded durations for one operation
func (mc *MetricsCollector) TotalDuration(operationID string) time.Duration {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	var total time.Duration
	for _, s := range mc.stages {
		if s.OperationID == operationID {
			total += s.Duration
		}
	}
	return total
}

// Reset discards every recorded measurement
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.stages = nil
}
