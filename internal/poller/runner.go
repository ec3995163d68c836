// internal/poller/runner.go
package poller

import (
	"context"
)

// Run is the acquisition loop. One goroutine per device, no overlap.
// Frames are sent on out in acquisition order; a blocked send gives way to
// cancellation. Run returns immediately if the poller already ran.
func (p *Poller) Run(ctx context.Context, out chan<- Sample) {
	if !p.begin() {
		return
	}
	defer p.finish()

	p.log.Debugf("worker started")
	defer p.log.Debugf("worker stopped")

	for {
		if p.stopping(ctx) {
			return
		}

		res := p.PollOnce()
		p.observe(res)

		if res.Err != nil {
			p.log.Debugf("skipping frame: %v", res.Err)
		} else {
			p.seq++
			s := Sample{
				Index:    res.Index,
				Seq:      p.seq,
				At:       res.At,
				Spectrum: res.Spectrum,
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			case <-p.wake:
				return
			}
		}

		if !p.sleep(ctx) {
			return
		}
	}
}
