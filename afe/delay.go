package afe

import "time"

// busyWaitLimit is the longest delay that is spun instead of slept.
const busyWaitLimit = time.Millisecond

// Delay waits for the analog side of the chip to settle. Short multiplexer
// settling delays are busy waited as a sleep can overshoot them by far more
// than the delay itself.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > busyWaitLimit {
		time.Sleep(d)
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
