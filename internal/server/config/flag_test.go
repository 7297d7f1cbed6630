package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret",
			"-r", "20", "-w", "40", "-g", "5", "-o", "https://a.example,https://b.example",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddr:       "127.0.0.1:9090",
				DatabaseDSN:        "db",
				SecretKey:          "secret",
				ReadTimeout:        20 * time.Second,
				WriteTimeout:       40 * time.Second,
				ShutdownTimeout:    5 * time.Second,
				CORSAllowedOrigins: []string{"https://a.example", "https://b.example"},
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Equal(t, tt.expected, config)
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
