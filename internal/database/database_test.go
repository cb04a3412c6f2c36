package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
)

func TestConnectRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), Enabled: true}, logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()

	client, err = ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, client, "disabled redis yields no client")
}

func TestConnectGivesUpAfterRetries(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:        "127.0.0.1",
		Port:        "1",
		Username:    "u",
		Password:    "p",
		Database:    "d",
		SSLMode:     "disable",
		ConnRetries: 1,
	}
	_, err := Connect(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
