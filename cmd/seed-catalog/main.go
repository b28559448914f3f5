// seed-catalog bulk-loads catalog entries from a CSV file into the
// smartlibrary database.
//
// CSV columns: title,author,genre,isbn,description,rating
// (description and rating may be empty; a header row is skipped when
// its first column is "title").
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"smartlibrary/library"
)

var (
	dbPath  string
	csvPath string
	reset   bool
)

func main() {
	root := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Bulk-load catalog entries from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&dbPath, "db", "smartlibrary.db", "path to the catalog database")
	root.Flags().StringVar(&csvPath, "csv", "", "path to the CSV file of books")
	root.MarkFlagRequired("csv")
	root.Flags().BoolVar(&reset, "reset", false, "delete any existing database first")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	if reset {
		fmt.Println("Cleaning up existing database files...")
		for _, suffix := range []string{"", "-shm", "-wal"} {
			file := dbPath + suffix
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
			}
		}
	}

	store, err := library.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	f, err := os.Open(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	successCount := 0
	errorCount := 0
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		line++

		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "title") {
			continue // header row
		}
		if len(record) < 4 {
			fmt.Printf("Line %d: need at least title,author,genre,isbn - skipping\n", line)
			errorCount++
			continue
		}

		book := library.Book{
			Title:  strings.TrimSpace(record[0]),
			Author: strings.TrimSpace(record[1]),
			Genre:  strings.TrimSpace(record[2]),
			ISBN:   strings.TrimSpace(record[3]),
		}
		if len(record) > 4 {
			book.Description = strings.TrimSpace(record[4])
		}
		if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
			rating, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
			if err != nil {
				fmt.Printf("Line %d: bad rating %q - leaving unset\n", line, record[5])
			} else {
				book.Rating = rating
			}
		}

		if book.Title == "" || book.Author == "" || book.Genre == "" || book.ISBN == "" {
			fmt.Printf("Line %d: missing required field - skipping\n", line)
			errorCount++
			continue
		}

		fmt.Printf("Importing: %s by %s... ", book.Title, book.Author)
		if err := store.InsertBook(&book); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("SUCCESS")
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		books, err := store.ListBooks()
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		fmt.Println("\nCatalog:")
		fmt.Printf("%-40s %-25s %-15s\n", "Title", "Author", "Genre")
		fmt.Println(strings.Repeat("-", 82))
		for _, b := range books {
			fmt.Printf("%-40s %-25s %-15s\n", truncateString(b.Title, 40), truncateString(b.Author, 25), truncateString(b.Genre, 15))
		}
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
