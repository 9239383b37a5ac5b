package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "accounts.json")
	store := NewStore(path)

	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", "project-a"))
	require.NoError(t, store.AddOrUpdate("b@x", "refresh-b", ""))

	reloaded := NewStore(path)
	require.Equal(t, 2, reloaded.Len())

	acc := reloaded.Get("a@x")
	require.NotNil(t, acc)
	assert.Equal(t, "refresh-a", acc.RefreshToken)
	assert.Equal(t, "project-a", acc.ProjectID)
}

func TestStoreFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	store := NewStore(path)
	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", "project-a"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["accounts"], 1)
	assert.Equal(t, "a@x", doc["accounts"][0]["email"])
	assert.NotContains(t, doc["accounts"][0], "is_invalid", "the invalid flag never persists")
}

func TestStoreMissingFileStartsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	assert.Zero(t, store.Len())
}

func TestStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(path)
	assert.Zero(t, store.Len())

	// The store stays writable after a corrupt load.
	require.NoError(t, store.AddOrUpdate("a@x", "refresh", ""))
	assert.Equal(t, 1, NewStore(path).Len())
}

func TestStoreSkipsIncompleteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	doc := `{"accounts": [
		{"email": "a@x", "refresh_token": "refresh-a"},
		{"email": "", "refresh_token": "orphan"},
		{"email": "b@x", "refresh_token": ""}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	store := NewStore(path)
	assert.Equal(t, 1, store.Len())
	assert.NotNil(t, store.Get("a@x"))
}

func TestStoreAddOrUpdateUpdatesInPlace(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, store.AddOrUpdate("a@x", "old", "project-a"))

	store.MarkInvalid("a@x", "expired")
	require.NoError(t, store.AddOrUpdate("a@x", "new", ""))

	require.Equal(t, 1, store.Len(), "emails are unique")
	acc := store.Get("a@x")
	assert.Equal(t, "new", acc.RefreshToken)
	assert.Equal(t, "project-a", acc.ProjectID, "empty project does not erase the stored one")
	assert.False(t, acc.Invalid, "re-adding clears the invalid flag")
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", ""))
	require.NoError(t, store.AddOrUpdate("b@x", "refresh-b", ""))

	removed, err := store.Remove("a@x")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, store.Get("a@x"))
	assert.Equal(t, 1, store.Len())

	removed, err = store.Remove("nobody@x")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStoreSetProjectID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	store := NewStore(path)
	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", ""))

	require.NoError(t, store.SetProjectID("a@x", "discovered"))
	assert.Error(t, store.SetProjectID("nobody@x", "p"))

	assert.Equal(t, "discovered", NewStore(path).Get("a@x").ProjectID)
}

func TestStoreListIsSnapshot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", ""))

	list := store.List()
	_, err := store.Remove("a@x")
	require.NoError(t, err)

	require.Len(t, list, 1, "snapshots survive concurrent mutation")
	assert.Equal(t, "a@x", list[0].Email)
}

func TestStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	store := NewStore(path)
	require.NoError(t, store.AddOrUpdate("a@x", "refresh-a", ""))

	require.NoError(t, store.Clear())
	assert.Zero(t, store.Len())
	assert.Zero(t, NewStore(path).Len())
}
