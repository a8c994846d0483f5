// Tests for the catalog store

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	return file
}

func TestCatalogStoreLoad(t *testing.T) {
	store := NewCatalogStore(writeCatalogFile(t, TEST_CATALOG))

	require.NoError(t, store.Load())

	catalog := store.Snapshot()
	require.NotNil(t, catalog)
	assert.True(t, catalog.GlobalAllow["alice"])
	require.Len(t, catalog.Classrooms, 2)
	assert.Equal(t, "room1", catalog.Classrooms[0].ID)
	assert.True(t, catalog.Classrooms[0].Allow["bob"])
	assert.Empty(t, catalog.Classrooms[1].Allow)
}

func TestCatalogStoreMissingFile(t *testing.T) {
	store := NewCatalogStore(filepath.Join(t.TempDir(), "missing.json"))

	assert.Error(t, store.Load())
	assert.Nil(t, store.Snapshot())
}

func TestCatalogStoreMalformedFile(t *testing.T) {
	store := NewCatalogStore(writeCatalogFile(t, "{not json"))

	assert.Error(t, store.Load())
}

func TestCatalogStoreDuplicatedClassroom(t *testing.T) {
	store := NewCatalogStore(writeCatalogFile(t, `{
		"classrooms": [{"id": "room1", "allow": []}, {"id": "room1", "allow": []}]
	}`))

	assert.Error(t, store.Load())
}

func TestCatalogStoreClassroomIdWithSeparator(t *testing.T) {
	store := NewCatalogStore(writeCatalogFile(t, `{
		"classrooms": [{"id": "room/1", "allow": []}]
	}`))

	assert.Error(t, store.Load())
}

func TestCatalogStoreClassroomWithoutId(t *testing.T) {
	store := NewCatalogStore(writeCatalogFile(t, `{
		"classrooms": [{"allow": []}]
	}`))

	assert.Error(t, store.Load())
}

func TestCatalogStoreReloadKeepsSnapshotOnError(t *testing.T) {
	file := writeCatalogFile(t, TEST_CATALOG)
	store := NewCatalogStore(file)
	require.NoError(t, store.Load())

	previous := store.Snapshot()

	require.NoError(t, os.WriteFile(file, []byte("{broken"), 0644))
	require.Error(t, store.Load())

	assert.Same(t, previous, store.Snapshot())
}

func TestCatalogStoreReloadSwapsSnapshot(t *testing.T) {
	file := writeCatalogFile(t, TEST_CATALOG)
	store := NewCatalogStore(file)
	require.NoError(t, store.Load())

	require.NoError(t, os.WriteFile(file, []byte(`{
		"global_allow": [],
		"classrooms": [{"id": "room3", "allow": ["dave"]}]
	}`), 0644))
	require.NoError(t, store.Load())

	catalog := store.Snapshot()
	require.Len(t, catalog.Classrooms, 1)
	assert.Equal(t, "room3", catalog.Classrooms[0].ID)
	assert.False(t, catalog.GlobalAllow["alice"])
}

func TestClassroomMarshalStripsAllow(t *testing.T) {
	room := Classroom{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "room1",
		"allow": ["bob"],
		"name": "Room One",
		"playsets": [{"date": "2019-11-06"}]
	}`), &room))

	data, err := json.Marshal(room)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, `"id":"room1"`)
	assert.Contains(t, body, "Room One")
	assert.Contains(t, body, "2019-11-06")
	assert.NotContains(t, body, "allow")
	assert.NotContains(t, body, "bob")
}
