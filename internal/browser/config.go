package browser

import "time"

type Backend string

const (
	BackendChromedp Backend = "chromedp"
	BackendRemote   Backend = "remote"
)

// Config controls how the browser is started.
type Config struct {
	Backend      Backend
	Headless     bool
	RemoteURL    string
	WindowWidth  int
	WindowHeight int
	// IdleAfter is how long the network must stay quiet after navigation.
	IdleAfter       time.Duration
	NavigateTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backend:         BackendChromedp,
		Headless:        true,
		WindowWidth:     1280,
		WindowHeight:    720,
		IdleAfter:       500 * time.Millisecond,
		NavigateTimeout: 30 * time.Second,
	}
}
