//go:build integration

package clickhouse

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/ethscraper/pkg/utils"
)

var testClickHouseClient Client

// loadTestEnv loads .env.test next to this file when present.
func loadTestEnv() error {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return nil
	}
	return godotenv.Load(filepath.Join(filepath.Dir(currentFile), ".env.test"))
}

func integrationConfig(t testing.TB) Config {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.DialTimeout = 5
	return cfg
}

// TestMain requires a running ClickHouse; tests fail rather than skip without one.
func TestMain(m *testing.M) {
	if err := loadTestEnv(); err != nil {
		log.Printf("integration: could not load .env.test: %v (using defaults)", err)
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("integration: %v", err)
	}
	cfg.DialTimeout = 5

	sugar, err := utils.NewSugaredLogger(true)
	if err != nil {
		log.Fatalf("integration: failed to create logger: %v", err)
	}

	testClickHouseClient, err = New(cfg, sugar)
	if err != nil {
		log.Fatalf("integration: failed to open ClickHouse connection: %v", err)
	}

	code := m.Run()
	_ = testClickHouseClient.Close()
	os.Exit(code)
}

func TestClientImpl_Methods(t *testing.T) {
	require.NotNil(t, testClickHouseClient)

	assert.NotNil(t, testClickHouseClient.Conn())
	assert.NoError(t, testClickHouseClient.Ping(context.Background()))

	tempClient, err := New(integrationConfig(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.NoError(t, tempClient.Close())
}

func TestNew_ExceptionError(t *testing.T) {
	cfg := integrationConfig(t)
	cfg.Username = "invaliduser"
	cfg.Password = "invalidpass"

	client, err := New(cfg, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.Nil(t, client)

	var exception *clickhouse.Exception
	require.ErrorAs(t, err, &exception)
	assert.NotZero(t, exception.Code)
	assert.NotEmpty(t, exception.Message)
}
