package discovery

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Connectivity-change backoff ladder: 10s, doubling on each self-triggered
// re-announcement, capped at 60s. Once capped, self-triggered
// re-announcements keep firing every 60s indefinitely — the ladder only
// resets to the floor when a fresh external trigger() call arrives while
// it is already parked at the cap.
const (
	backoffInitial = 10 * time.Second
	backoffMax     = 60 * time.Second
)

// connectivityBackoff drives the recursive re-announce schedule: every
// fire runs action immediately, then reschedules itself at the current
// period and doubles that period until it reaches the cap, continuing to
// fire at the cap forever after. trigger is the external entry point; a
// call to it that lands while the ladder is already parked at the cap
// restarts the ladder from the floor instead of letting it continue at
// 60s.
type connectivityBackoff struct {
	clk    clock.Clock
	period time.Duration
	timer  *clock.Timer
}

func newConnectivityBackoff(clk clock.Clock) *connectivityBackoff {
	return &connectivityBackoff{clk: clk, period: backoffInitial}
}

func (b *connectivityBackoff) trigger(action func()) {
	if b.period == backoffMax {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.period = backoffInitial
	}
	b.fire(action)
}

func (b *connectivityBackoff) fire(action func()) {
	action()

	if b.timer != nil {
		b.timer.Stop()
	}
	period := b.period
	b.timer = b.clk.AfterFunc(period, func() { b.fire(action) })

	if next := period * 2; next < backoffMax {
		b.period = next
	} else {
		b.period = backoffMax
	}
}

func (b *connectivityBackoff) stop() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.period = backoffInitial
}
