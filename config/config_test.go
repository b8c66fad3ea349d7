package config_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/tql"
	"github.com/syssam/tql/config"
	"github.com/syssam/tql/dialect"
)

func TestParse(t *testing.T) {
	c, err := config.Parse([]byte(`
dialect: mysql
dsn: app:secret@tcp(localhost:3306)/app?parseTime=true
debug: true
slow_threshold: 250ms
max_open_conns: 10
max_idle_conns: 2
conn_max_lifetime: 1h
statement_cache: true
`))
	require.NoError(t, err)
	assert.Equal(t, &config.Config{
		Dialect:         dialect.MySQL,
		DSN:             "app:secret@tcp(localhost:3306)/app?parseTime=true",
		Debug:           true,
		SlowThreshold:   250 * time.Millisecond,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		StatementCache:  true,
	}, c)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  config.Config
		wantErr string
	}{
		{
			name:   "SQLite",
			config: config.Config{Dialect: dialect.SQLite, DSN: ":memory:"},
		},
		{
			name:   "PostgresURL",
			config: config.Config{Dialect: dialect.Postgres, DSN: "postgres://app@localhost:5432/app?sslmode=disable"},
		},
		{
			name:   "PostgresKeywords",
			config: config.Config{Dialect: dialect.Postgres, DSN: "host=localhost dbname=app"},
		},
		{
			name:    "UnknownDialect",
			config:  config.Config{Dialect: "oracle", DSN: "x"},
			wantErr: "oracle",
		},
		{
			name:    "MissingDSN",
			config:  config.Config{Dialect: dialect.SQLite},
			wantErr: "dsn is required",
		},
		{
			name:    "MySQLParseTime",
			config:  config.Config{Dialect: dialect.MySQL, DSN: "app@tcp(localhost:3306)/app"},
			wantErr: "parseTime=true",
		},
		{
			name:    "MySQLMalformed",
			config:  config.Config{Dialect: dialect.MySQL, DSN: "app@tcp(localhost:3306"},
			wantErr: "mysql dsn",
		},
		{
			name:    "IdleExceedsOpen",
			config:  config.Config{Dialect: dialect.SQLite, DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 4},
			wantErr: "max_idle_conns 4 exceeds max_open_conns 1",
		},
		{
			name:    "NegativeThreshold",
			config:  config.Config{Dialect: dialect.SQLite, DSN: ":memory:", SlowThreshold: -time.Second},
			wantErr: "slow_threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseUnknownField(t *testing.T) {
	_, err := config.Parse([]byte("dialect: sqlite\ndsn: ':memory:'\npool: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool")
}

func TestLoad(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeConfig(t, t.TempDir(), false)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, c.Dialect)
	assert.False(t, c.Debug)
}

func TestOpen(t *testing.T) {
	c := &config.Config{Dialect: dialect.SQLite, DSN: ":memory:", MaxOpenConns: 1, StatementCache: true}
	db, err := c.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.Equal(t, dialect.SQLite, db.Dialect().Name)

	bad := &config.Config{Dialect: dialect.MySQL, DSN: "app@tcp(localhost:3306)/app"}
	_, err = bad.Open(context.Background())
	assert.ErrorContains(t, err, "parseTime")
}

func writeConfig(t *testing.T, dir string, debug bool) string {
	t.Helper()
	path := filepath.Join(dir, "db.yaml")
	data := "dialect: sqlite\ndsn: ':memory:'\nslow_threshold: 1s\n"
	if debug {
		data += "debug: true\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// lockedBuffer is a log sink shared with the watch goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	got := make(chan *config.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, logger, func(c *config.Config) { got <- c })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	// An invalid file is reported to the logger and skipped.
	require.NoError(t, os.WriteFile(path, []byte("dialect: oracle\ndsn: x\n"), 0o600))
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "config: ignoring invalid configuration")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, got)

	writeConfig(t, dir, true)
	select {
	case c := <-got:
		assert.True(t, c.Debug)
		assert.Equal(t, time.Second, c.SlowThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("no configuration after the file was written")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, false)
	c, err := config.Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	db, err := c.Open(context.Background(), tql.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- config.Reload(ctx, path, db) }()
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, true)

	ping := tql.NewRawStatement(tql.KindOther, "SELECT 1")
	assert.Eventually(t, func() bool {
		_, err := db.Session().Exec(context.Background(), ping)
		return err == nil && strings.Contains(buf.String(), "tql: statement")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
