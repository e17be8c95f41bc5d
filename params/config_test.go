package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Port != 3001 {
		t.Fatalf("default port = %d", cfg.Port)
	}
	if cfg.WALPath != "./data/wal/orderbook.wal" {
		t.Fatalf("default wal path = %s", cfg.WALPath)
	}
	if cfg.FsyncEveryN != 1 {
		t.Fatalf("default fsync_every_n = %d", cfg.FsyncEveryN)
	}
	if cfg.SnapshotInterval != 10*time.Second {
		t.Fatalf("default snapshot interval = %s", cfg.SnapshotInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ORDERBOOK_PORT", "9000")
	t.Setenv("ORDERBOOK_WAL_PATH", "/tmp/test.wal")
	t.Setenv("FSYNC_EVERY_N", "50")
	t.Setenv("SNAPSHOT_INTERVAL_MS", "2500")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadFromEnv("")
	if cfg.Port != 9000 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.WALPath != "/tmp/test.wal" {
		t.Fatalf("wal path = %s", cfg.WALPath)
	}
	if cfg.FsyncEveryN != 50 {
		t.Fatalf("fsync_every_n = %d", cfg.FsyncEveryN)
	}
	if cfg.SnapshotInterval != 2500*time.Millisecond {
		t.Fatalf("snapshot interval = %s", cfg.SnapshotInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %s", cfg.LogLevel)
	}
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("ORDERBOOK_PORT", "not-a-number")
	t.Setenv("FSYNC_EVERY_N", "0")
	t.Setenv("SNAPSHOT_INTERVAL_MS", "-5")

	cfg := LoadFromEnv("")
	if cfg.Port != 3001 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.FsyncEveryN != 1 {
		t.Fatalf("fsync_every_n = %d", cfg.FsyncEveryN)
	}
	if cfg.SnapshotInterval != 10*time.Second {
		t.Fatalf("snapshot interval = %s", cfg.SnapshotInterval)
	}
}
