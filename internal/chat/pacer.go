package chat

import (
	"sync"
	"time"
)

// releaseDivisor controls how much buffered text each tick releases:
// ceil(remaining/releaseDivisor) runes, so output drains smoothly but
// accelerates when the buffer grows.
const releaseDivisor = 60

// Pacer decouples the rate text is shown from the rate network chunks
// arrive. Pushed text accumulates in a pending buffer; a periodic tick
// releases a slice of it through the update callback. Finish flushes
// whatever remains in one shot and stops the ticker.
type Pacer struct {
	interval time.Duration
	onUpdate func(full, delta string)

	mu      sync.Mutex
	emitted []rune
	remain  []rune
	stopped bool

	stop chan struct{}
	done chan struct{}
}

// NewPacer starts a pacer ticking at the given interval.
func NewPacer(interval time.Duration, onUpdate func(full, delta string)) *Pacer {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	p := &Pacer{
		interval: interval,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

// Push appends text to the pending buffer.
func (p *Pacer) Push(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	p.remain = append(p.remain, []rune(text)...)
	p.mu.Unlock()
}

// Emitted returns the text released so far.
func (p *Pacer) Emitted() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.emitted)
}

// Finish stops the ticker, flushes all remaining text through the update
// callback, and returns the complete emitted text. Safe to call more than
// once.
func (p *Pacer) Finish() string {
	p.mu.Lock()
	if p.stopped {
		full := string(p.emitted)
		p.mu.Unlock()
		return full
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done

	p.mu.Lock()
	var delta string
	if len(p.remain) > 0 {
		delta = string(p.remain)
		p.emitted = append(p.emitted, p.remain...)
		p.remain = nil
	}
	full := string(p.emitted)
	cb := p.onUpdate
	p.mu.Unlock()

	if delta != "" && cb != nil {
		cb(full, delta)
	}
	return full
}

func (p *Pacer) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pacer) tick() {
	p.mu.Lock()
	if len(p.remain) == 0 {
		p.mu.Unlock()
		return
	}
	n := (len(p.remain) + releaseDivisor - 1) / releaseDivisor
	if n < 1 {
		n = 1
	}
	delta := string(p.remain[:n])
	p.emitted = append(p.emitted, p.remain[:n]...)
	p.remain = p.remain[n:]
	full := string(p.emitted)
	cb := p.onUpdate
	p.mu.Unlock()

	if cb != nil {
		cb(full, delta)
	}
}
