package wait_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shehryarbajwa/cukebrowser/internal/driver/drivertest"
	"github.com/shehryarbajwa/cukebrowser/internal/wait"
)

func TestWaitForNewWindowsSingleWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("waits the full timeout")
	}
	s := drivertest.NewSession("fake")

	start := time.Now()
	handles := wait.WaitForNewWindows(context.Background(), s, 5000*time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, handles)
	assert.GreaterOrEqual(t, elapsed, 5*time.Second)
	assert.Less(t, elapsed, 6*time.Second)
}

func TestWaitForNewWindowsSecondWindowOpens(t *testing.T) {
	s := drivertest.NewSession("fake")
	time.AfterFunc(2*time.Second, func() { s.SetWindows("window-1", "window-2") })

	start := time.Now()
	handles := wait.WaitForNewWindows(context.Background(), s, 5000*time.Millisecond)

	assert.Len(t, handles, 2)
	assert.LessOrEqual(t, time.Since(start), 3100*time.Millisecond)
}

func TestWaitForNewWindowsStopsOnCancel(t *testing.T) {
	s := drivertest.NewSession("fake")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Nil(t, wait.WaitForNewWindows(ctx, s, 5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForNewWindowsSlowPollsKeepTimeout(t *testing.T) {
	s := drivertest.NewSession("fake")
	s.Latency = 1500 * time.Millisecond

	start := time.Now()
	handles := wait.WaitForNewWindows(context.Background(), s, 2*time.Second)
	elapsed := time.Since(start)

	assert.Nil(t, handles)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 2500*time.Millisecond)
}

func TestWaitForNewWindowsSlowPollFindsWindow(t *testing.T) {
	s := drivertest.NewSession("fake")
	s.Latency = 300 * time.Millisecond
	s.SetWindows("window-1", "window-2")

	start := time.Now()
	handles := wait.WaitForNewWindows(context.Background(), s, 2*time.Second)

	assert.Equal(t, []string{"window-1", "window-2"}, handles)
	assert.Less(t, time.Since(start), time.Second)
}
