package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/robinjoseph08/golib/logger"
	"github.com/spf13/cobra"

	"library-catalog/config"
	"library-catalog/library"
)

// Imports books from a CSV file with the columns title,author,isbn,year.
// A header row is skipped when its isbn column is literally "isbn".
func main() {
	log := logger.New()

	var configFile string
	cmd := &cobra.Command{
		Use:          "import_books <books.csv>",
		Short:        "Bulk import books into the catalog",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configFile)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendJSON {
				return fmt.Errorf("import_books only supports the %s backend", config.BackendJSON)
			}

			catalog, err := library.Open(library.NewJSONStore(cfg.DataFile, cfg.VerifyChecksum), library.WithLogger(log))
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return importBooks(cmd.OutOrStdout(), catalog, f)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	if err := cmd.Execute(); err != nil {
		log.Err(err).Fatal("import failed")
	}
}

func importBooks(w io.Writer, catalog *library.Catalog, r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	successCount := 0
	errorCount := 0
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			fmt.Fprintf(w, "Line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[2]), "isbn") {
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil {
			fmt.Fprintf(w, "Line %d: ERROR - invalid year %q\n", line, record[3])
			errorCount++
			continue
		}

		fmt.Fprintf(w, "Importing: %s by %s... ", record[0], record[1])
		book, err := catalog.AddBook(library.AddBookParams{
			Title:  record[0],
			Author: record[1],
			ISBN:   record[2],
			Year:   year,
		})
		if err != nil {
			fmt.Fprintf(w, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(w, "SUCCESS (ID: %d)\n", book.ID)
		successCount++
	}

	fmt.Fprintf(w, "\nImport complete!\n")
	fmt.Fprintf(w, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(w, "Errors: %d\n", errorCount)
	return nil
}
