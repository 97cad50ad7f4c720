package audio

import "sync"

// Gate is an RMS silence gate for outbound call audio. Blocks above the
// threshold open it; it stays open for holdBlocks quieter blocks. A short
// pre-buffer of suppressed blocks is released when the gate opens so word
// starts are not clipped.
type Gate struct {
	mu        sync.Mutex
	threshold float64
	holdTime  int
	holdCount int

	preBuffer  [][]int16
	preBufSize int
	preBufIdx  int
}

// NewGate creates a gate. threshold is an RMS level for int16 PCM (typical:
// 300-1000); holdBlocks and preBufferBlocks are counted in blocks.
func NewGate(threshold float64, holdBlocks, preBufferBlocks int) *Gate {
	return &Gate{
		threshold:  threshold,
		holdTime:   holdBlocks,
		preBufSize: preBufferBlocks,
		preBuffer:  make([][]int16, preBufferBlocks),
	}
}

// Process returns the blocks to transmit for block: nil while closed, the
// pre-buffered blocks followed by block when opening, or just block while
// open.
func (g *Gate) Process(block []int16) [][]int16 {
	rms := RMS(block)

	g.mu.Lock()
	defer g.mu.Unlock()

	if rms > g.threshold {
		wasOpen := g.holdCount > 0
		g.holdCount = g.holdTime + 1
		if wasOpen {
			return [][]int16{block}
		}
		out := append(g.drain(), block)
		return out
	}

	if g.holdCount > 0 {
		g.holdCount--
		if g.holdCount > 0 {
			return [][]int16{block}
		}
	}

	if g.preBufSize > 0 {
		cp := make([]int16, len(block))
		copy(cp, block)
		g.preBuffer[g.preBufIdx%g.preBufSize] = cp
		g.preBufIdx++
	}
	return nil
}

// Open reports whether the gate is currently passing audio.
func (g *Gate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holdCount > 0
}

// drain returns buffered blocks oldest first and empties the ring.
func (g *Gate) drain() [][]int16 {
	count := min(g.preBufIdx, g.preBufSize)
	var blocks [][]int16
	for i := g.preBufIdx - count; i < g.preBufIdx; i++ {
		if b := g.preBuffer[i%g.preBufSize]; b != nil {
			blocks = append(blocks, b)
		}
		g.preBuffer[i%g.preBufSize] = nil
	}
	g.preBufIdx = 0
	return blocks
}
