// Package datastore exports lookup results to a local SQLite file or a
// remote Datasette instance.
package datastore

import "fmt"

// Database is the Datasette database name lookups are written to.
const Database = "buyback"

// Store defines the interface for lookup export targets
type Store interface {
	// Connect establishes a connection to the data store
	Connect() error

	// CreateTable creates a new table with the given schema if it doesn't exist
	CreateTable(schema string) error

	// BatchInsert inserts multiple records into the specified table
	BatchInsert(database string, table string, records []map[string]any) error

	// Close closes the connection to the data store
	Close() error
}

// Store modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// NewStore returns the Store for mode: a SQLite file for "local", the
// Datasette insert API for "remote".
func NewStore(mode, dbFile, remoteURL, apiToken string) (Store, error) {
	switch mode {
	case ModeLocal, "":
		return NewSQLiteStore(dbFile), nil
	case ModeRemote:
		if remoteURL == "" {
			return nil, fmt.Errorf("datasette remote URL is required in remote mode")
		}
		return NewDatasetteClient(remoteURL, apiToken), nil
	default:
		return nil, fmt.Errorf("invalid Datasette mode: %s", mode)
	}
}
