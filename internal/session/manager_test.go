package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/internal/driver/drivertest"
	"github.com/shehryarbajwa/cukebrowser/internal/session"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

type fixture struct {
	provider *drivertest.Provider
	manager  *session.Manager
}

func newFixture(t *testing.T, cfg session.Config) *fixture {
	t.Helper()
	provider := drivertest.NewProvider("fakebrowser")
	factory := driver.NewFactory(zaptest.NewLogger(t))
	factory.Register(provider)
	cfg.Browser = "fakebrowser"
	return &fixture{
		provider: provider,
		manager:  session.NewManager(factory, cfg, zaptest.NewLogger(t)),
	}
}

func (f *fixture) runScenario(t *testing.T, failed bool) *models.ScenarioOutcome {
	t.Helper()
	ctx := context.Background()
	_, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	out := &models.ScenarioOutcome{Name: t.Name(), Failed: failed}
	f.manager.Complete(ctx, out)
	return out
}

func TestDefaultPolicyReusesOneSession(t *testing.T) {
	f := newFixture(t, session.Config{})
	ctx := context.Background()
	assert.Equal(t, models.StateUninitialized, f.manager.State())

	first, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	second, err := f.manager.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, f.provider.Launched(), 1)
	assert.Equal(t, models.StateActive, f.manager.State())
	assert.Equal(t, 1, f.manager.Info().Created)
}

func TestDefaultPolicyDestroysOnceAfterLastScenario(t *testing.T) {
	f := newFixture(t, session.Config{Policy: session.PolicyClear})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.runScenario(t, false)
	}
	launched := f.provider.Launched()
	require.Len(t, launched, 1)
	fake := launched[0]
	assert.Zero(t, fake.Calls("Quit"))

	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))
	assert.Equal(t, 1, fake.Calls("CloseWindow"))
	assert.Equal(t, 1, fake.Calls("Quit"))
	assert.Equal(t, models.StateClosed, f.manager.State())
	assert.Nil(t, f.manager.Current())

	// Nothing left to destroy.
	task := f.manager.Teardown(ctx)
	select {
	case <-task.Done():
	default:
		t.Fatal("no-op teardown should already be finished")
	}
	assert.NoError(t, task.Err())
	assert.Equal(t, 1, fake.Calls("Quit"))
}

func TestAcquireAfterTeardownStartsFreshSession(t *testing.T) {
	f := newFixture(t, session.Config{})
	ctx := context.Background()

	first, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))

	second, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, models.StateActive, f.manager.State())
}

func TestAlwaysPolicyChecksSessionEveryScenario(t *testing.T) {
	f := newFixture(t, session.Config{Policy: session.PolicyAlways})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.runScenario(t, false)
	}
	launched := f.provider.Launched()
	require.Len(t, launched, 1)
	// First acquire creates; the next two check liveness.
	assert.Equal(t, 2, launched[0].Calls("Closed"))

	// A scenario quitting the browser itself forces a new session.
	require.NoError(t, launched[0].Quit(ctx))
	f.runScenario(t, false)
	assert.Len(t, f.provider.Launched(), 2)

	// The runner never destroys under this policy.
	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))
	assert.Zero(t, f.provider.Launched()[1].Calls("Quit"))
	assert.Equal(t, models.StateActive, f.manager.State())
}

func TestCompleteClearsCookiesAndStorage(t *testing.T) {
	f := newFixture(t, session.Config{})
	ctx := context.Background()

	s, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	fake := s.(*drivertest.Session)
	fake.SetCookie("sid", "abc")
	fake.SetStorageItem("cart", "3")

	f.manager.Complete(ctx, &models.ScenarioOutcome{Name: "first"})
	assert.Empty(t, fake.Cookies())
	assert.Empty(t, fake.Storage())

	f.manager.Complete(ctx, &models.ScenarioOutcome{Name: "second"})
	assert.Empty(t, fake.Cookies())
	assert.Equal(t, 2, fake.Calls("ClearCookies"))
	assert.Equal(t, 2, fake.Calls("ClearStorage"))
}

func TestFailedScenarioScreenshotPrecedesTeardown(t *testing.T) {
	f := newFixture(t, session.Config{Screenshots: true})
	ctx := context.Background()

	out := f.runScenario(t, true)
	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))

	fake := f.provider.Launched()[0]
	assert.Equal(t, fake.ScreenshotData, out.Screenshot)
	assert.Equal(t, 1, fake.Calls("Screenshot"))

	passed := newFixture(t, session.Config{Screenshots: true}).runScenario(t, false)
	assert.Nil(t, passed.Screenshot)
}

func TestFailedScenarioDestroysSession(t *testing.T) {
	f := newFixture(t, session.Config{Policy: session.PolicyClear, Screenshots: true})
	ctx := context.Background()

	out := f.runScenario(t, true)
	require.Len(t, f.provider.Launched(), 1)
	failedSession := f.provider.Launched()[0]
	assert.Equal(t, failedSession.ScreenshotData, out.Screenshot)
	assert.Equal(t, 1, failedSession.Calls("CloseWindow"))
	assert.Equal(t, 1, failedSession.Calls("Quit"))
	assert.Equal(t, models.StateClosed, f.manager.State())
	assert.Nil(t, f.manager.Current())

	f.runScenario(t, false)
	launched := f.provider.Launched()
	require.Len(t, launched, 2)
	assert.NotEqual(t, failedSession.ID(), launched[1].ID())
	assert.Equal(t, models.StateActive, f.manager.State())
	assert.Zero(t, launched[1].Calls("Quit"))

	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))
	assert.Equal(t, 1, failedSession.Calls("Quit"))
	assert.Equal(t, 1, launched[1].Calls("Quit"))
}

func TestFailedScenarioKeepsSessionUnderAlways(t *testing.T) {
	f := newFixture(t, session.Config{Policy: session.PolicyAlways, Screenshots: true})

	f.runScenario(t, true)
	f.runScenario(t, false)

	launched := f.provider.Launched()
	require.Len(t, launched, 1)
	assert.Zero(t, launched[0].Calls("Quit"))
	assert.Equal(t, models.StateActive, f.manager.State())
}

func TestFailedScenarioTeardownErrorStillReplacesSession(t *testing.T) {
	f := newFixture(t, session.Config{})
	f.provider.Configure = func(s *drivertest.Session) { s.QuitErr = errors.New("browser hung") }

	f.runScenario(t, true)
	assert.Equal(t, models.StateClosed, f.manager.State())

	f.runScenario(t, false)
	assert.Len(t, f.provider.Launched(), 2)
}

func TestScreenshotsDisabled(t *testing.T) {
	f := newFixture(t, session.Config{Screenshots: false})
	out := f.runScenario(t, true)
	assert.Nil(t, out.Screenshot)
	assert.Zero(t, f.provider.Launched()[0].Calls("Screenshot"))
}

func TestScreenshotFailureStillRunsHygiene(t *testing.T) {
	f := newFixture(t, session.Config{Screenshots: true})
	f.provider.Configure = func(s *drivertest.Session) {
		s.ScreenshotErr = errors.New("no frame")
	}
	out := f.runScenario(t, true)
	assert.Nil(t, out.Screenshot)
	assert.Equal(t, 1, f.provider.Launched()[0].Calls("ClearCookies"))
}

func TestReleasesOnCloseSkipsQuit(t *testing.T) {
	f := newFixture(t, session.Config{})
	f.provider.Configure = func(s *drivertest.Session) {
		caps := s.Capabilities()
		caps.ReleasesOnClose = true
		s.SetCapabilities(caps)
	}
	ctx := context.Background()

	f.runScenario(t, false)
	require.NoError(t, f.manager.Teardown(ctx).Wait(ctx))

	fake := f.provider.Launched()[0]
	assert.Equal(t, 1, fake.Calls("CloseWindow"))
	assert.Zero(t, fake.Calls("Quit"))
	assert.True(t, fake.Closed())
}

func TestConcurrentTeardownReturnsSameTask(t *testing.T) {
	f := newFixture(t, session.Config{})
	f.provider.Configure = func(s *drivertest.Session) { s.Latency = 50 * time.Millisecond }
	ctx := context.Background()

	f.runScenario(t, false)
	first := f.manager.Teardown(ctx)
	second := f.manager.Teardown(ctx)
	assert.Same(t, first, second)
	assert.Equal(t, models.StateClosing, f.manager.State())

	require.NoError(t, first.Wait(ctx))
	assert.Equal(t, 1, f.provider.Launched()[0].Calls("Quit"))
}

func TestAcquireWaitsForTeardownInFlight(t *testing.T) {
	f := newFixture(t, session.Config{})
	f.provider.Configure = func(s *drivertest.Session) { s.Latency = 50 * time.Millisecond }
	ctx := context.Background()

	f.runScenario(t, false)
	task := f.manager.Teardown(ctx)

	s, err := f.manager.Acquire(ctx)
	require.NoError(t, err)
	assert.NoError(t, task.Err())
	assert.Len(t, f.provider.Launched(), 2)
	assert.Equal(t, f.provider.Launched()[1].ID(), s.ID())
}

func TestTeardownErrorStillQuits(t *testing.T) {
	f := newFixture(t, session.Config{})
	closeErr := errors.New("window already gone")
	f.provider.Configure = func(s *drivertest.Session) { s.CloseErr = closeErr }
	ctx := context.Background()

	f.runScenario(t, false)
	err := f.manager.Teardown(ctx).Wait(ctx)

	var teardownErr *session.TeardownError
	require.ErrorAs(t, err, &teardownErr)
	assert.Equal(t, "fakebrowser", teardownErr.Browser)
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, 1, f.provider.Launched()[0].Calls("Quit"))
	assert.Equal(t, models.StateClosed, f.manager.State())
}

func TestAcquireFailure(t *testing.T) {
	f := newFixture(t, session.Config{})
	f.provider.FailWith(errors.New("binary missing"))

	_, err := f.manager.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary missing")
	assert.Equal(t, models.StateUninitialized, f.manager.State())

	// Complete without a session is a no-op.
	f.manager.Complete(context.Background(), &models.ScenarioOutcome{Failed: true})
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, session.PolicyAlways, session.ParsePolicy(" Always "))
	assert.Equal(t, session.PolicyClear, session.ParsePolicy(""))
	assert.True(t, session.ParsePolicy("never").DestroysAtEnd())
	assert.False(t, session.PolicyAlways.DestroysAtEnd())
}
