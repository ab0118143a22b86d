package cli

import "os"

// Config holds CLI configuration
type Config struct {
	DaemonURL string
	Output    string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		DaemonURL: getEnvOrDefault("PARTYCTL_DAEMON", "http://127.0.0.1:7616"),
		Output:    "text",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
