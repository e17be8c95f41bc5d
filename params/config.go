package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	WALPath          string
	FsyncEveryN      int
	SnapshotInterval time.Duration
	SnapshotDBPath   string
	SnapshotRetain   int
	KafkaBrokers     []string // empty = trade feed disabled
	KafkaTradeTopic  string
	LogFile          string // empty = stdout only
	LogLevel         string
}

func Default() Config {
	return Config{
		Port:             3001,
		WALPath:          "./data/wal/orderbook.wal",
		FsyncEveryN:      1,
		SnapshotInterval: 10 * time.Second,
		SnapshotDBPath:   "./data/snapshots",
		SnapshotRetain:   5,
		KafkaTradeTopic:  "orderbook.trades",
		LogLevel:         "info",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: env > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if port := os.Getenv("ORDERBOOK_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Port = n
		}
	}
	if path := os.Getenv("ORDERBOOK_WAL_PATH"); path != "" {
		cfg.WALPath = path
	}
	if n := os.Getenv("FSYNC_EVERY_N"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v >= 1 {
			cfg.FsyncEveryN = v
		}
	}
	if ms := os.Getenv("SNAPSHOT_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			cfg.SnapshotInterval = time.Duration(v) * time.Millisecond
		}
	}
	if path := os.Getenv("SNAPSHOT_DB_PATH"); path != "" {
		cfg.SnapshotDBPath = path
	}
	if n := os.Getenv("SNAPSHOT_RETAIN"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v >= 1 {
			cfg.SnapshotRetain = v
		}
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("KAFKA_TRADE_TOPIC"); topic != "" {
		cfg.KafkaTradeTopic = topic
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.LogFile = file
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	return cfg
}
