package practice

// Config holds configuration for the practice server.
type Config struct {
	// Port is the port on which the practice server listens.
	Port int

	// InitialVersion is the starting version for all pages (default: 1).
	InitialVersion int

	// Username and Password are the only accepted credentials.
	Username string
	Password string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVersion: 1,
		Username:       "qa@uiflow.test",
		Password:       "practice",
	}
}
