package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted in HARVEST_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	// Extraction backend
	ExtractBaseURL string
	ExtractAPIKey  string
	PollInterval   time.Duration
	MaxPolls       int

	// Sources
	SourcesFile string

	// Storage
	Store      string
	CacheTTL   time.Duration
	SQLitePath string
	PGDSN      string
	PGMaxConns int
	MergeChunk int

	// Runtime
	Workers         int
	HTTPAddr        string
	RefreshInterval time.Duration
	LogLevel        string

	// SFTP publish
	SFTPHost                  string
	SFTPPort                  int
	SFTPUser                  string
	SFTPPass                  string
	SFTPDir                   string
	SFTPKnownHosts            string
	SFTPInsecureIgnoreHostKey bool
}

func Load() Config {
	return Config{
		// Extraction backend
		ExtractBaseURL: getenv("HARVEST_EXTRACT_BASE_URL", "https://api.firecrawl.dev"),
		ExtractAPIKey:  os.Getenv("HARVEST_EXTRACT_API_KEY"),
		PollInterval:   getenvDuration("HARVEST_POLL_INTERVAL", 5*time.Second),
		MaxPolls:       getenvInt("HARVEST_MAX_POLLS", 36),

		// Sources
		SourcesFile: os.Getenv("HARVEST_SOURCES_FILE"),

		// Storage
		Store:      strings.ToLower(getenv("HARVEST_STORE", StoreMemory)),
		CacheTTL:   getenvDuration("HARVEST_CACHE_TTL", 12*time.Hour),
		SQLitePath: getenv("HARVEST_SQLITE_PATH", "harvest.db"),
		PGDSN:      os.Getenv("HARVEST_PG_DSN"),
		PGMaxConns: getenvInt("HARVEST_PG_MAX_CONNS", 4),
		MergeChunk: getenvInt("HARVEST_MERGE_CHUNK", 100),

		// Runtime
		Workers:         getenvInt("HARVEST_WORKERS", 4),
		HTTPAddr:        getenv("HARVEST_HTTP_ADDR", ":8080"),
		RefreshInterval: getenvDuration("HARVEST_REFRESH_INTERVAL", 0),
		LogLevel:        getenv("HARVEST_LOG_LEVEL", "info"),

		// SFTP publish
		SFTPHost:                  os.Getenv("SFTP_HOST"),
		SFTPPort:                  getenvInt("SFTP_PORT", 22),
		SFTPUser:                  os.Getenv("SFTP_USER"),
		SFTPPass:                  os.Getenv("SFTP_PASS"),
		SFTPDir:                   getenv("SFTP_REMOTE_DIR", "/"),
		SFTPKnownHosts:            os.Getenv("SFTP_KNOWN_HOSTS"),
		SFTPInsecureIgnoreHostKey: getenvBool("SFTP_INSECURE_IGNORE_HOSTKEY", true),
	}
}

// Validate checks the settings that would otherwise fail late, at first use.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: HARVEST_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("config: HARVEST_PG_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown HARVEST_STORE %q (want memory, sqlite or postgres)", c.Store)
	}
	if c.MaxPolls <= 0 {
		return fmt.Errorf("config: HARVEST_MAX_POLLS must be positive, got %d", c.MaxPolls)
	}
	if c.MergeChunk <= 0 {
		return fmt.Errorf("config: HARVEST_MERGE_CHUNK must be positive, got %d", c.MergeChunk)
	}
	return nil
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}

func getenvBool(k string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}

// getenvDuration accepts Go durations ("90s", "12h") or a bare number of seconds.
func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
