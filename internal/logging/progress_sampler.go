package logging

import "strings"

// ProgressSampler thins out MakeMKV progress lines so only operation changes
// and percentage bucket crossings reach the log.
type ProgressSampler struct {
	step      float64
	operation string
	bucket    int
}

// NewProgressSampler returns a sampler that emits every step percent (10 when step <= 0).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step, bucket: -1}
}

// Sample reports whether the progress update should be logged. A negative
// percent means the total is unknown and only operation changes count.
func (s *ProgressSampler) Sample(operation string, percent float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if op := strings.TrimSpace(operation); op != "" && op != s.operation {
		s.operation = op
		s.bucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if percent > 100 {
		percent = 100
	}
	if bucket := int(percent / s.step); bucket > s.bucket {
		s.bucket = bucket
		emit = true
	}
	return emit
}
