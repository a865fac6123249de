package database

import (
	"context"
	"fmt"
	"testing"

	"commsense_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		Path:     fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		LogLevel: "silent",
	}
}

func TestHandleLifecycle(t *testing.T) {
	h := NewHandle(sqliteConfig(t))
	assert.Equal(t, StateInit, h.State())

	_, err := h.DB()
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, h.Open(context.Background()))
	assert.Equal(t, StateReady, h.State())
	assert.Equal(t, "ready", h.State().String())
	require.NoError(t, h.Open(context.Background()), "opening a ready handle is a no-op")

	require.NoError(t, h.Ping(context.Background()))
	require.NoError(t, h.Migrate())

	db, err := h.DB()
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("quiz_summaries"))

	require.NoError(t, h.Close())
	assert.Equal(t, StateClosed, h.State())
	require.NoError(t, h.Close())

	_, err = h.DB()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, h.Open(context.Background()), ErrClosed)
}

func TestHandleUnknownDriver(t *testing.T) {
	h := NewHandle(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, h.Open(context.Background()))
	assert.Equal(t, StateInit, h.State())
}
