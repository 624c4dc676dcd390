// Command publish prepares a raw client export for serving. It keeps the
// configured columns, masks product numbers and sorts rows by key, then writes
// the result to a file or stores it as a snapshot in PostgreSQL.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"clientlookup/internal/config"
	"clientlookup/internal/dataset"
	"clientlookup/internal/db"
)

func main() {
	var (
		in         = flag.String("in", "", "raw CSV export to prepare (required)")
		out        = flag.String("out", "", "write the prepared CSV to this file")
		dbURL      = flag.String("db", "", "store the prepared CSV as a snapshot in this database")
		name       = flag.String("name", "clients", "snapshot name when publishing to a database")
		schemaFile = flag.String("schema", os.Getenv("DATASET_SCHEMA_FILE"), "dataset schema file")
	)
	flag.Parse()

	if *in == "" || (*out == "" && *dbURL == "") {
		flag.Usage()
		os.Exit(2)
	}

	schema, err := config.LoadSchema(*schemaFile)
	if err != nil {
		log.Fatalf("Failed to load dataset schema: %v", err)
	}

	content, rows, err := prepare(*in, schema.PrepareOptions())
	if err != nil {
		log.Fatalf("Failed to prepare %s: %v", *in, err)
	}
	log.Printf("Prepared %s rows (%s, checksum %s)", humanize.Comma(int64(rows)), humanize.Bytes(uint64(len(content))), db.Checksum(content))

	if *out != "" {
		if err := writeFile(*out, content); err != nil {
			log.Fatalf("Failed to write %s: %v", *out, err)
		}
		log.Printf("Wrote %s", *out)
	}

	if *dbURL != "" {
		ctx := context.Background()
		database, err := db.New(ctx, *dbURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.RunMigrations(*dbURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		snap, err := database.PutSnapshot(ctx, *name, content, rows)
		if err != nil {
			log.Fatalf("Failed to publish snapshot: %v", err)
		}
		log.Printf("Published snapshot %q (updated %s)", snap.Name, snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func prepare(path string, opts dataset.PrepareOptions) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var buf bytes.Buffer
	rows, err := dataset.Prepare(f, &buf, opts)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), rows, nil
}

// writeFile replaces path atomically so a running server never reads a
// partially written dataset.
func writeFile(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}
