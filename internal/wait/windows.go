package wait

import (
	"context"
	"time"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

// windowPollInterval is fixed; WaitForNewWindows does not use the engine's
// poll interval.
const windowPollInterval = time.Second

// WaitForNewWindows polls the open window handles once a second until more
// than one exists, returning them. It returns nil when timeout elapses or ctx
// ends, and never reports an error. A slow poll does not hold up the timeout;
// its result is dropped.
func WaitForNewWindows(ctx context.Context, s driver.Session, timeout time.Duration) []string {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(windowPollInterval)
	defer ticker.Stop()

	for {
		polled := make(chan []string, 1)
		go func() {
			handles, err := s.WindowHandles(ctx)
			if err != nil {
				handles = nil
			}
			polled <- handles
		}()

		select {
		case handles := <-polled:
			if len(handles) > 1 {
				return handles
			}
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return nil
		}

		// The deadline wins over a tick that is also ready.
		select {
		case <-deadline.C:
			return nil
		default:
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
