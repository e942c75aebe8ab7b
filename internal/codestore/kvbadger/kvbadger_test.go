package kvbadger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenInMemoryRoundTrip(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put("code:fn1", []byte("console.log(1)")))

	got, err := db.Get("code:fn1")
	require.NoError(t, err)
	require.Equal(t, "console.log(1)", string(got))

	ok, err := db.Exists("code:fn1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetMissReturnsNilNoError(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get("code:missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteIsNoopWhenAbsent(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Delete("code:never-existed"))
}

func TestOpenWithPathPersists(t *testing.T) {
	dir, err := os.MkdirTemp("", "kvbadger-test-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	db, err := OpenWithPath(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put("code:fn2", []byte("persisted")))
	require.NoError(t, db.Close())

	db2, err := OpenWithPath(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get("code:fn2")
	require.NoError(t, err)
	require.Equal(t, "persisted", string(got))
}

func TestListKeysWithPrefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put("code:fn3", []byte("latest")))
	require.NoError(t, db.Put("code:fn3:v:1.0.0", []byte("v1")))
	require.NoError(t, db.Put("code:other", []byte("unrelated")))

	keys, err := db.ListKeysWithPrefix("code:fn3")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}
