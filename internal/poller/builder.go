// internal/poller/builder.go
package poller

import (
	"fmt"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

// Build constructs one poller per source, in order.
// Pollers are single-use; build a fresh set for every start.
func Build[S Source](srcs []S, cfg Config, log *eventlog.Log) ([]*Poller, error) {
	out := make([]*Poller, 0, len(srcs))
	for _, s := range srcs {
		p, err := New(cfg, s, log)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", s.Index(), err)
		}
		out = append(out, p)
	}
	return out, nil
}
