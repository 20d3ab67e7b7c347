package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr             = "127.0.0.1:8789"
	defaultSnapshotInterval = 5 * time.Minute
	defaultPersist          = "off"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
)

type Config struct {
	Addr             string
	BaseURL          string
	LogLevel         string
	LogFormat        string
	Persist          string
	DBPath           string
	StorageDir       string
	RedisAddr        string
	SnapshotInterval time.Duration
	PeersPath        string
	PeerTTL          time.Duration
	HolderID         string
	NoSeed           bool
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "fractald.db")
	defaultStorageDir := filepath.Join(cwd, "fractal-data")

	addr := addrFromEnv(defaultAddr)
	snapshotInterval := defaultSnapshotInterval
	if v := os.Getenv("FRACTALD_SNAPSHOT_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FRACTALD_SNAPSHOT_INTERVAL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("FRACTALD_SNAPSHOT_INTERVAL must be positive")
		}
		snapshotInterval = parsed
	}

	flagSet := flag.NewFlagSet("fractald", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagBaseURL := flagSet.String("base-url", os.Getenv("FRACTALD_BASE_URL"), "public URL used in ActivityPub documents (default http://<addr>)")
	flagLogLevel := flagSet.String("log-level", envOrDefault("FRACTALD_LOG_LEVEL", defaultLogLevel), "log level: debug|info|warn|error")
	flagLogFormat := flagSet.String("log-format", envOrDefault("FRACTALD_LOG_FORMAT", defaultLogFormat), "log format: json|console")
	flagPersist := flagSet.String("persist", envOrDefault("FRACTALD_PERSIST", defaultPersist), "snapshot sink: off|sqlite|fs|redis")
	flagDB := flagSet.String("db", envOrDefault("FRACTALD_DB_PATH", defaultDBPath), "path to SQLite database when persist=sqlite")
	flagStorageDir := flagSet.String("storage-dir", envOrDefault("FRACTALD_STORAGE_DIR", defaultStorageDir), "snapshot directory when persist=fs")
	flagRedis := flagSet.String("redis-addr", os.Getenv("FRACTALD_REDIS_ADDR"), "redis address when persist=redis")
	flagInterval := flagSet.String("snapshot-interval", snapshotInterval.String(), "snapshot interval")
	flagPeers := flagSet.String("peers", os.Getenv("FRACTALD_PEERS_PATH"), "YAML peers file (reloaded on SIGHUP)")
	flagPeerTTL := flagSet.Duration("peer-ttl", 10*time.Minute, "how long a peer stays active after its last activity")
	flagHolder := flagSet.String("holder-id", envOrDefault("FRACTALD_HOLDER_ID", defaultHolderID()), "snapshot lease holder id")
	flagNoSeed := flagSet.Bool("no-seed", false, "start empty instead of seeding the codex nodes")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	intervalParsed, err := time.ParseDuration(*flagInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid snapshot interval: %w", err)
	}
	if intervalParsed <= 0 {
		return Config{}, errors.New("snapshot interval must be positive")
	}

	config := Config{
		Addr:             strings.TrimSpace(*flagAddr),
		BaseURL:          strings.TrimRight(strings.TrimSpace(*flagBaseURL), "/"),
		LogLevel:         strings.ToLower(strings.TrimSpace(*flagLogLevel)),
		LogFormat:        strings.ToLower(strings.TrimSpace(*flagLogFormat)),
		Persist:          normalizePersist(*flagPersist),
		DBPath:           resolvePath(*flagDB, cwd),
		StorageDir:       resolvePath(*flagStorageDir, cwd),
		RedisAddr:        strings.TrimSpace(*flagRedis),
		SnapshotInterval: intervalParsed,
		PeersPath:        resolvePath(*flagPeers, cwd),
		PeerTTL:          *flagPeerTTL,
		HolderID:         strings.TrimSpace(*flagHolder),
		NoSeed:           *flagNoSeed,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://" + config.Addr
	}
	if config.PeerTTL <= 0 {
		return Config{}, errors.New("peer ttl must be positive")
	}

	switch config.Persist {
	case "off", "sqlite", "fs":
	case "redis":
		if config.RedisAddr == "" {
			return Config{}, errors.New("persist=redis requires redis-addr")
		}
	default:
		return Config{}, fmt.Errorf("unsupported persist mode: %s", config.Persist)
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("unsupported log level: %s", config.LogLevel)
	}
	if config.LogFormat != "json" && config.LogFormat != "console" {
		return Config{}, fmt.Errorf("unsupported log format: %s", config.LogFormat)
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("FRACTALD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("FRACTALD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func defaultHolderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "fractald"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizePersist(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "off", "none", "disabled":
		return "off"
	case "sqlite", "sqlite3", "db":
		return "sqlite"
	case "fs", "file", "files", "dir":
		return "fs"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}
