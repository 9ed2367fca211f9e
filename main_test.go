package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/library"
)

// execute runs the root command once with a fresh app, the way a single
// process invocation would.
func execute(args ...string) (string, error) {
	a := &app{log: logger.New()}
	root := a.rootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandsJSONBackend(t *testing.T) {
	data := filepath.Join(t.TempDir(), "catalog.json")

	out, err := execute("add-book", "--data", data, "--title", "1984", "--author", "George Orwell", "--isbn", "9780451524935", "--year", "1949")
	require.NoError(t, err)
	assert.Contains(t, out, "Added book ID 1.")

	out, err = execute("add-member", "--data", data, "--name", "João", "--email", "joao@email.com", "--phone", "123")
	require.NoError(t, err)
	assert.Contains(t, out, "Added member 'João' with ID 1")

	out, err = execute("loan", "1", "1", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Loan 1: '1984' lent to João")

	out, err = execute("list", "loans", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Open")

	out, err = execute("search", "orwell", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 book(s) matching 'orwell'")

	out, err = execute("return", "1", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Book '1984' returned and available again")

	out, err = execute("list", "books", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "9780451524935")
	assert.Contains(t, out, "Yes")

	c, err := library.Open(library.NewJSONStore(data, true))
	require.NoError(t, err)
	assert.Equal(t, library.Counters{Book: 1, Member: 1, Loan: 1}, c.Counters())
}

func TestCommandsSQLiteBackend(t *testing.T) {
	data := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execute("add-book", "--backend", "sqlite", "--data", data, "--title", "1984", "--author", "George Orwell", "--isbn", "9780451524935")
	require.NoError(t, err)

	out, err := execute("list", "books", "--backend", "sqlite", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "1984")

	store, err := library.NewSQLiteStore(data)
	require.NoError(t, err)
	defer store.Close()
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Books, 1)

	_, err = os.Stat(filepath.Join(filepath.Dir(data), "catalog.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCommandErrors(t *testing.T) {
	data := filepath.Join(t.TempDir(), "catalog.json")

	_, err := execute("add-book", "--data", data, "--title", "Livro", "--author", "Autor", "--isbn", "123")
	assert.ErrorIs(t, err, library.ErrValidation)

	_, err = execute("loan", "abc", "1", "--data", data)
	assert.EqualError(t, err, "invalid member ID: abc")

	_, err = execute("loan", "1", "1", "--data", data)
	assert.ErrorIs(t, err, library.ErrMemberNotFound)

	_, err = execute("return", "5", "--data", data)
	assert.ErrorIs(t, err, library.ErrLoanNotFound)

	_, err = execute("list", "authors", "--data", data)
	assert.Error(t, err)

	_, err = execute("list", "books", "--backend", "postgres", "--data", data)
	assert.EqualError(t, err, `unknown backend "postgres"`)
}

func TestCommandOpensCorruptFile(t *testing.T) {
	data := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(data, []byte("{broken"), 0o644))

	out, err := execute("list", "books", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "No books in library.")
}
