package library

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	returned := testTime.Add(24 * time.Hour)
	return &Snapshot{
		Books: []Book{
			{ID: 1, Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Year: 1949, Available: true},
			{ID: 2, Title: "Dom Casmurro", Author: "Machado de Assis", ISBN: "8535910557", Year: 1899, Available: false},
		},
		Members: []Member{{ID: 1, Name: "João", Email: "joao@email.com", Phone: "123"}},
		Loans: []Loan{
			{ID: 1, MemberID: 1, BookID: 1, Returned: true, LoanedAt: testTime, ReturnedAt: &returned},
			{ID: 2, MemberID: 1, BookID: 2, LoanedAt: testTime},
		},
		Counters: Counters{Book: 2, Member: 1, Loan: 2},
	}
}

func TestJSONStoreLoadMissing(t *testing.T) {
	_, err := tempStore(t).Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestJSONStoreRoundTrip(t *testing.T) {
	store := tempStore(t)
	want := sampleSnapshot()
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, got.Checksum)

	got.Checksum = ""
	assert.Equal(t, want, got)
}

func TestJSONStoreCreatesDirectory(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "nested", "dir", "library.json"), true)
	require.NoError(t, store.Save(sampleSnapshot()))

	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestJSONStoreChecksumMismatch(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Save(sampleSnapshot()))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "George Orwell", "Eric Blair", 1)
	require.NoError(t, os.WriteFile(store.Path(), []byte(tampered), 0o644))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	lenient := NewJSONStore(store.Path(), false)
	snap, err := lenient.Load()
	require.NoError(t, err)
	assert.Equal(t, "Eric Blair", snap.Books[0].Author)
}

func TestJSONStoreAcceptsFileWithoutChecksum(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{
  "books": [{"id": 1, "title": "1984", "author": "George Orwell", "isbn": "9780451524935", "year": 1949, "available": true}],
  "members": [],
  "loans": [],
  "counters": {"book": 1, "member": 0, "loan": 0}
}`), 0o644))

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Books, 1)
	assert.Equal(t, int64(1), snap.Counters.Book)
}

func TestJSONStoreQuarantine(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("garbage"), 0o644))

	_, err := store.Load()
	require.ErrorIs(t, err, ErrCorruptSnapshot)

	moved, err := store.Quarantine()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(moved, store.Path()+".corrupt-"))

	data, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestJSONStoreDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultDataFile, NewJSONStore("", true).Path())
}
