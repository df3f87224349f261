package harness

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/internal/driver/drivertest"
	"github.com/shehryarbajwa/cukebrowser/internal/report"
)

type recordingSink struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *recordingSink) Generate(_ context.Context, resultsFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, resultsFile)
	return s.err
}

type countingCreator struct {
	calls int
	err   error
}

func (c *countingCreator) CreateSession(context.Context, string) (driver.Session, error) {
	c.calls++
	return nil, c.err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Browser = "fakebrowser"
	cfg.Timeout = 300 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond
	cfg.ReportsDir = t.TempDir()
	cfg.SharedObjectDirs = nil
	cfg.PageObjectDir = ""
	return cfg
}

func newTestHarness(t *testing.T, cfg config.Config, opts ...Option) (*Harness, *drivertest.Provider) {
	t.Helper()
	provider := drivertest.NewProvider("fakebrowser")
	factory := driver.NewFactory(zaptest.NewLogger(t))
	factory.Register(provider)

	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithCreator(factory),
		WithOutput(io.Discard),
	}, opts...)
	h, err := New(cfg, opts...)
	require.NoError(t, err)
	return h, provider
}

func scenario(name string) *godog.Scenario {
	return &godog.Scenario{Name: name, Uri: "features/shop.feature"}
}

func TestBeforeScenarioPublishesWorld(t *testing.T) {
	h, provider := newTestHarness(t, testConfig(t))
	ctx := context.Background()
	assert.Nil(t, WorldFrom(ctx))

	ctx1, err := h.beforeScenario(ctx, scenario("first"))
	require.NoError(t, err)
	w := WorldFrom(ctx1)
	require.NotNil(t, w)
	assert.NotNil(t, w.Helpers)
	assert.Same(t, h.Engine(), w.Wait)
	assert.Equal(t, "fakebrowser", w.Config.Browser)

	ctx2, err := h.beforeScenario(ctx, scenario("second"))
	require.NoError(t, err)
	assert.Same(t, w.Session, WorldFrom(ctx2).Session)
	assert.Len(t, provider.Launched(), 1)
}

func TestAfterScenarioFailureScreenshotAndHygiene(t *testing.T) {
	h, provider := newTestHarness(t, testConfig(t))
	ctx, err := h.beforeScenario(context.Background(), scenario("Pay with card!"))
	require.NoError(t, err)
	fake := provider.Launched()[0]
	fake.SetCookie("sid", "1")

	stepErr := errors.New("waiting for attribute timed out")
	_, hookErr := h.afterScenario(ctx, scenario("Pay with card!"), stepErr)
	require.NoError(t, hookErr)

	outcomes := h.Outcomes()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed)
	assert.Equal(t, stepErr.Error(), outcomes[0].Error)
	assert.Equal(t, fake.ScreenshotData, outcomes[0].Screenshot)
	assert.Empty(t, fake.Cookies())
	assert.Equal(t, 1, fake.Calls("Quit"))
	assert.FileExists(t, filepath.Join(h.Config().ReportsDir, "screenshots", "001-pay-with-card.png"))
}

func TestFailedScenarioGetsFreshSessionNext(t *testing.T) {
	h, provider := newTestHarness(t, testConfig(t), WithSink(&recordingSink{}))
	ctx := context.Background()

	sctx, err := h.beforeScenario(ctx, scenario("declined card"))
	require.NoError(t, err)
	_, err = h.afterScenario(sctx, scenario("declined card"), errors.New("payment form never appeared"))
	require.NoError(t, err)

	sctx, err = h.beforeScenario(ctx, scenario("gift card"))
	require.NoError(t, err)
	_, err = h.afterScenario(sctx, scenario("gift card"), nil)
	require.NoError(t, err)

	launched := provider.Launched()
	require.Len(t, launched, 2)
	assert.Same(t, launched[1], WorldFrom(sctx).Session)
	assert.Equal(t, 1, launched[0].Calls("Quit"))
	assert.Zero(t, launched[1].Calls("Quit"))

	require.NoError(t, h.Finish(ctx))
	assert.Equal(t, 1, launched[0].Calls("Quit"))
	assert.Equal(t, 1, launched[1].Calls("Quit"))
	assert.Equal(t, 2, h.SessionInfo().Created)
}

func TestAfterScenarioWithoutSession(t *testing.T) {
	h, _ := newTestHarness(t, testConfig(t))
	_, err := h.afterScenario(context.Background(), scenario("orphan"), errors.New("before hook failed"))
	assert.NoError(t, err)
	require.Len(t, h.Outcomes(), 1)
	assert.Nil(t, h.Outcomes()[0].Screenshot)
}

func TestSessionErrorIsFatalToRun(t *testing.T) {
	creator := &countingCreator{err: &driver.UnknownDriverError{Identifier: "netscape"}}
	h, err := New(testConfig(t), WithCreator(creator), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	_, err = h.beforeScenario(context.Background(), scenario("one"))
	var unknown *driver.UnknownDriverError
	require.ErrorAs(t, err, &unknown)

	_, err = h.beforeScenario(context.Background(), scenario("two"))
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 1, creator.calls)
	assert.Error(t, h.Fatal())
}

func TestFinishGeneratesReportsThenTearsDown(t *testing.T) {
	sink := &recordingSink{err: &report.ReportGenerationError{Stage: "read", Err: os.ErrNotExist}}
	cfg := testConfig(t)
	h, provider := newTestHarness(t, cfg, WithSink(sink))
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		sctx, err := h.beforeScenario(ctx, scenario(name))
		require.NoError(t, err)
		_, err = h.afterScenario(sctx, scenario(name), nil)
		require.NoError(t, err)
	}

	require.NoError(t, h.Finish(ctx))
	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Finish")
	}

	assert.Equal(t, []string{filepath.Join(cfg.ReportsDir, "results.json")}, sink.paths)
	require.Len(t, provider.Launched(), 1)
	assert.Equal(t, 1, provider.Launched()[0].Calls("Quit"))
	assert.FileExists(t, filepath.Join(cfg.ReportsDir, "metrics.prom"))

	require.NoError(t, h.Finish(ctx))
	assert.Len(t, sink.paths, 1)
	assert.Equal(t, 1, provider.Launched()[0].Calls("Quit"))
}

func TestFinishSkipsReportsWhenDirectoryMissing(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig(t)
	cfg.ReportsDir = filepath.Join(cfg.ReportsDir, "absent")
	h, _ := newTestHarness(t, cfg, WithSink(sink))

	require.NoError(t, h.Finish(context.Background()))
	assert.Empty(t, sink.paths)
	assert.NoDirExists(t, cfg.ReportsDir)
}

func TestFinishUnderAlwaysPolicyLeavesSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.TeardownPolicy = "always"
	h, provider := newTestHarness(t, cfg, WithSink(&recordingSink{}))

	_, err := h.beforeScenario(context.Background(), scenario("a"))
	require.NoError(t, err)
	require.NoError(t, h.Finish(context.Background()))
	assert.Zero(t, provider.Launched()[0].Calls("Quit"))
}

func TestFinishLogsTeardownError(t *testing.T) {
	h, provider := newTestHarness(t, testConfig(t), WithSink(&recordingSink{}))
	provider.Configure = func(s *drivertest.Session) { s.QuitErr = errors.New("browser hung") }

	_, err := h.beforeScenario(context.Background(), scenario("a"))
	require.NoError(t, err)
	assert.NoError(t, h.Finish(context.Background()))
}

func TestWorldResolveAndErr(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.yaml"), []byte("admin:\n  name: root\n"), 0644))
	pages := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pages, "login.yaml"), []byte("submit: \"#go\"\n"), 0644))

	cfg := testConfig(t)
	cfg.SharedObjectDirs = []string{dir}
	cfg.PageObjectDir = pages
	h, _ := newTestHarness(t, cfg)

	ctx, err := h.beforeScenario(context.Background(), scenario("resolve"))
	require.NoError(t, err)
	w := WorldFrom(ctx)

	v, err := w.Resolve("$shared.users.admin.name")
	require.NoError(t, err)
	assert.Equal(t, "root", v)
	v, err = w.Resolve("$page.login.submit")
	require.NoError(t, err)
	assert.Equal(t, "#go", v)
	v, err = w.Resolve("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", v)
	_, err = w.Resolve("$shared.users.guest")
	assert.Error(t, err)

	assert.False(t, w.Assert.Equal(1, 2))
	assert.Error(t, w.Err())
	assert.NoError(t, w.Err())
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "pay-with-card", slug("  Pay with card! "))
	assert.Equal(t, "scenario", slug("!!!"))
}
