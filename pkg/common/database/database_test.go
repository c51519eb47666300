package database

import (
	"testing"
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/config"
)

func testConfig() *config.Config {
	return &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "etl",
		PostgresPassword: "pw",
		PostgresDB:       "readmission",
		PostgresSSLMode:  "require",
		RedisHost:        "cache",
		RedisPort:        "6380",
		RedisDB:          2,
		ReadTimeout:      3 * time.Second,
		WriteTimeout:     4 * time.Second,
	}
}

func TestPostgresDSN(t *testing.T) {
	want := "host=db user=etl password=pw dbname=readmission port=5433 sslmode=require"
	if got := PostgresDSN(testConfig()); got != want {
		t.Fatalf("unexpected dsn %q", got)
	}
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(testConfig())
	if opts.Addr != "cache:6380" || opts.DB != 2 {
		t.Fatalf("unexpected address or db: %+v", opts)
	}
	if opts.ReadTimeout != 3*time.Second || opts.WriteTimeout != 4*time.Second {
		t.Fatalf("timeouts not applied: read=%s write=%s", opts.ReadTimeout, opts.WriteTimeout)
	}
}
