package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch.local")(cfg)
	WithDatabase("econ")(cfg)
	WithCredentials("reader", "p@ss")(cfg)
	WithTimeouts(2*time.Second, 0)(cfg)
	WithMaxExecutionTime(time.Minute)(cfg)

	opt := options(cfg)
	assert.Equal(t, clickhouse.Native, opt.Protocol)
	assert.Equal(t, []string{"ch.local:9000"}, opt.Addr)
	assert.Equal(t, clickhouse.Auth{Database: "econ", Username: "reader", Password: "p@ss"}, opt.Auth)
	assert.Equal(t, 2*time.Second, opt.DialTimeout)
	assert.Equal(t, 30*time.Second, opt.ReadTimeout)
	assert.Equal(t, 60, opt.Settings["max_execution_time"])
	require.NotNil(t, opt.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, opt.Compression.Method)
}

func TestOptions_HTTPWithoutExtras(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch.local")(cfg)
	WithPort(8123)(cfg)
	WithHTTP(true)(cfg)
	WithCompression(false)(cfg)
	WithCredentials("", "")(cfg)

	opt := options(cfg)
	assert.Equal(t, clickhouse.HTTP, opt.Protocol)
	assert.Equal(t, []string{"ch.local:8123"}, opt.Addr)
	assert.Equal(t, "default", opt.Auth.Username)
	assert.Nil(t, opt.Settings)
	assert.Nil(t, opt.Compression)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(context.Background(), WithPort(9000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}
