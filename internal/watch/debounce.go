package watch

import "time"

// Debounce forwards the last change of every burst once no further change
// has arrived for delay. A pending change is flushed when in closes.
func Debounce(in <-chan Change, delay time.Duration) <-chan Change {
	out := make(chan Change, 1)

	go func() {
		defer close(out)

		var (
			pending *Change
			timer   *time.Timer
			fire    <-chan time.Time
		)

		for {
			select {
			case c, ok := <-in:
				if !ok {
					if timer != nil {
						timer.Stop()
					}
					if pending != nil {
						out <- *pending
					}
					return
				}

				pending = &c
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				fire = timer.C

			case <-fire:
				out <- *pending
				pending = nil
				fire = nil
			}
		}
	}()

	return out
}
