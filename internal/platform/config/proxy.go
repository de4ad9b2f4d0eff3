package config

import "time"

// Proxy is the relay configuration read from the environment.
type Proxy struct {
	Host          string
	Port          int
	VariantLimit  int
	FetchTimeout  time.Duration
	ChunkSize     int
	InsecureTLS   bool
	UserAgent     string
	ExcludeTracks []string
	LogLevel      string
	LogFormat     string
}

// LoadProxy reads HLSPROXY_* variables. Port 0 asks the OS for an ephemeral port
// and a variant limit of 0 keeps every variant.
func LoadProxy() Proxy {
	return Proxy{
		Host:          GetEnv("HLSPROXY_HOST", "127.0.0.1"),
		Port:          GetEnvInt("HLSPROXY_PORT", 0),
		VariantLimit:  GetEnvInt("HLSPROXY_VARIANT_LIMIT", 3),
		FetchTimeout:  GetEnvDuration("HLSPROXY_FETCH_TIMEOUT", 15*time.Second),
		ChunkSize:     GetEnvInt("HLSPROXY_CHUNK_SIZE", 128*1024),
		InsecureTLS:   GetEnvBool("HLSPROXY_INSECURE_TLS", true),
		UserAgent:     GetEnv("HLSPROXY_USER_AGENT", ""),
		ExcludeTracks: GetEnvList("HLSPROXY_EXCLUDE_TRACKS", []string{"thumb"}),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "text"),
	}
}
