package config

import "time"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host:           "127.0.0.1",
			Port:           4222,
			ConnectTimeout: Duration(10 * time.Second),
			SendTimeout:    Duration(5 * time.Second),
		},
		TLS: TLSConfig{
			Enabled: false,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:  false,
			Interval: Duration(30 * time.Second),
		},
	}
}
