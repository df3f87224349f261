package driver

import (
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Named browser identifiers.
const (
	Chrome         = "chrome"
	Chromium       = "chromium"
	ChromeHeadless = "chrome-headless"
	Firefox        = "firefox"
	WebKit         = "webkit"
	Browserless    = "browserless"
)

const (
	defaultWindowWidth  = 1920
	defaultWindowHeight = 1080
)

// Options tunes the built-in providers.
type Options struct {
	ChromePath       string
	FirefoxPath      string
	BrowserlessImage string
}

func builtinProviders(logger *zap.Logger, opts Options) []Provider {
	chromePath := firstNonEmpty(opts.ChromePath, os.Getenv("CHROME_PATH"))
	firefoxPath := firstNonEmpty(opts.FirefoxPath, os.Getenv("FIREFOX_PATH"))

	return []Provider{
		&chromeProvider{
			name:     Chrome,
			execPath: chromePath,
			binaries: []string{"google-chrome", "google-chrome-stable", "chrome"},
			logger:   logger,
		},
		&chromeProvider{
			name:     Chromium,
			execPath: chromePath,
			binaries: []string{"chromium", "chromium-browser"},
			logger:   logger,
		},
		&chromeProvider{
			name:     ChromeHeadless,
			headless: true,
			execPath: chromePath,
			binaries: []string{"google-chrome", "chromium", "chromium-browser"},
			logger:   logger,
		},
		&playwrightProvider{
			name:     Firefox,
			engine:   Firefox,
			execPath: firefoxPath,
			// Closing the last Firefox window ends the browser process.
			releasesOnClose: true,
			logger:          logger,
		},
		&playwrightProvider{
			name:   WebKit,
			engine: WebKit,
			logger: logger,
		},
		newBrowserlessProvider(opts.BrowserlessImage, logger),
	}
}

// lookPath returns the first binary found on PATH, or "" to let the driver
// discover one itself.
func lookPath(binaries []string) string {
	for _, name := range binaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
