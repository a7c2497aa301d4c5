package disc

// Progress is the state carried by PRGV/PRGC lines during a rip or backup.
type Progress struct {
	Operation string
	Current   int
	Total     int
	Max       int
}

// Percent returns overall completion, or -1 when the maximum is unknown.
func (p Progress) Percent() float64 {
	if p.Max <= 0 {
		return -1
	}
	return float64(p.Total) / float64(p.Max) * 100
}

// ProgressTracker folds a stream of robot lines into the latest Progress.
type ProgressTracker struct {
	state Progress
}

// Observe consumes one output line and reports whether it changed progress.
func (t *ProgressTracker) Observe(line string) (Progress, bool) {
	key, fields, ok := splitRobotLine(line)
	if !ok {
		return t.state, false
	}
	switch key {
	case "PRGV":
		if len(fields) < 3 {
			return t.state, false
		}
		current, ok1 := atoi(fields[0])
		total, ok2 := atoi(fields[1])
		limit, ok3 := atoi(fields[2])
		if !ok1 || !ok2 || !ok3 {
			return t.state, false
		}
		t.state.Current, t.state.Total, t.state.Max = current, total, limit
		return t.state, true
	case "PRGT":
		if len(fields) < 3 {
			return t.state, false
		}
		t.state.Operation = fields[2]
		return t.state, true
	}
	return t.state, false
}
