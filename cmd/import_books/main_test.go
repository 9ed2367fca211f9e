package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/library"
)

func TestImportBooks(t *testing.T) {
	store := library.NewJSONStore(filepath.Join(t.TempDir(), "library.json"), true)
	catalog, err := library.Open(store)
	require.NoError(t, err)

	csv := strings.Join([]string{
		"title,author,isbn,year",
		"1984,George Orwell,9780451524935,1949",
		"Dom Casmurro,Machado de Assis,8535910557,1899",
		"Repetido,Outro,9780451524935,2000",
		"Sem ano,Autor,1234567890,abc",
		"Curto,Autor,123,2001",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, importBooks(&out, catalog, strings.NewReader(csv)))

	books := catalog.ListBooks()
	require.Len(t, books, 2)
	assert.Equal(t, "1984", books[0].Title)
	assert.Equal(t, "Dom Casmurro", books[1].Title)

	report := out.String()
	assert.Contains(t, report, "Importing: 1984 by George Orwell... SUCCESS (ID: 1)")
	assert.Contains(t, report, "Successfully imported: 2 books")
	assert.Contains(t, report, "Errors: 3")
}

func TestImportBooksWithoutHeader(t *testing.T) {
	store := library.NewJSONStore(filepath.Join(t.TempDir(), "library.json"), true)
	catalog, err := library.Open(store)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, importBooks(&out, catalog, strings.NewReader("1984,George Orwell,9780451524935,1949\n")))

	assert.Len(t, catalog.ListBooks(), 1)
	assert.Contains(t, out.String(), "Successfully imported: 1 books")
}
