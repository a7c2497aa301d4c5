package poller

import "sync/atomic"

type gateState int32

const (
	gateFree gateState = iota
	gateScanning
	gateProcessing
)

// gate serializes scan cycles and processing runs through a single
// three-state value. A cycle acquires it as scanning, promotes it to
// processing when it dispatches, and releases it when it ends.
type gate struct {
	state atomic.Int32
}

func (g *gate) tryScan() bool {
	return g.state.CompareAndSwap(int32(gateFree), int32(gateScanning))
}

func (g *gate) promote() bool {
	return g.state.CompareAndSwap(int32(gateScanning), int32(gateProcessing))
}

func (g *gate) release() {
	g.state.Store(int32(gateFree))
}

func (g *gate) current() gateState {
	return gateState(g.state.Load())
}

// demote hands the gate back to the enclosing scan cycle after a run.
func (g *gate) demote() {
	g.state.CompareAndSwap(int32(gateProcessing), int32(gateScanning))
}
