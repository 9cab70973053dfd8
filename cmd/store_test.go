package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vltavalabs/leadscout/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close()
}

func TestInitStore_SQLiteDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	_, statErr := os.Stat(filepath.Join("data", "leadscout.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "mysql"},
	}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_Migrates(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	// Migrated schema accepts queries immediately.
	_, err = st.RecentSessions(context.Background(), 1)
	assert.NoError(t, err)
}
