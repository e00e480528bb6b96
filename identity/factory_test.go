package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreForBarePath(t *testing.T) {
	store, err := StoreFor("/opt/config/devices.db", testLogger())
	require.NoError(t, err)

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	assert.Equal(t, "/opt/config/devices.db", sqliteStore.path)
}

func TestStoreForSQLiteScheme(t *testing.T) {
	store, err := StoreFor("sqlite:///opt/config/devices.db", testLogger())
	require.NoError(t, err)

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	assert.Equal(t, "/opt/config/devices.db", sqliteStore.path)
}

func TestStoreForVault(t *testing.T) {
	store, err := StoreFor("vault://vault.internal:8200/secret/greengrass", testLogger())
	require.NoError(t, err)

	vaultStore, ok := store.(*VaultStore)
	require.True(t, ok)
	assert.Equal(t, "https://vault.internal:8200", vaultStore.address)
	assert.Equal(t, "secret", vaultStore.mountPath)
	assert.Equal(t, "greengrass", vaultStore.dataPath)
}

func TestStoreForVaultMissingPath(t *testing.T) {
	_, err := StoreFor("vault://vault.internal:8200/secret", testLogger())
	assert.Error(t, err)
}

func TestStoreForUnsupportedScheme(t *testing.T) {
	_, err := StoreFor("redis://localhost:6379/0", testLogger())
	assert.Error(t, err)
}
