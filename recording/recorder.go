// Package recording stores simulation statistics in a SQLite database.
package recording

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/fatih/structs"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var (
	// ErrUnknownTable is returned when inserting into a table that was not
	// created.
	ErrUnknownTable = errors.New("unknown table")

	// ErrInvalidEntry is returned for entries that are not flat structs of
	// scalar fields.
	ErrInvalidEntry = errors.New("invalid entry")
)

// Recorder is a backend that stores rows of statistics.
type Recorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all buffered entries.
	Flush() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteRecorder is a Recorder that writes to a SQLite file. Entries are
// buffered and written in one transaction per flush.
type SQLiteRecorder struct {
	db        *sql.DB
	path      string
	tables    map[string]*table
	batchSize int
	buffered  int
}

// New creates a recorder writing to a new database at path. An empty path
// creates a uniquely named database in the working directory.
func New(path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = "memsim_" + xid.New().String() + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("database %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r := &SQLiteRecorder{
		db:        db,
		path:      path,
		tables:    make(map[string]*table),
		batchSize: 100000,
	}

	atexit.Register(func() {
		if err := r.Flush(); err != nil {
			log.Printf("recording: %v", err)
		}
	})

	return r, nil
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// DB returns the underlying database connection.
func (r *SQLiteRecorder) DB() *sql.DB {
	return r.db
}

func isScalar(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry, entry)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !isScalar(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s has kind %s",
				ErrInvalidEntry, field.Name, field.Type.Kind())
		}
	}

	return nil
}

// CreateTable creates a table with one column per field of sampleEntry.
func (r *SQLiteRecorder) CreateTable(tableName string, sampleEntry any) error {
	if err := checkStructFields(sampleEntry); err != nil {
		return err
	}

	fields := strings.Join(structs.Names(sampleEntry), ",\n\t")
	query := "CREATE TABLE " + tableName + " (\n\t" + fields + "\n);"

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	r.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

// InsertData buffers an entry. The buffer is flushed once it holds a full
// batch.
func (r *SQLiteRecorder) InsertData(tableName string, entry any) error {
	t, ok := r.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		return fmt.Errorf("%w: %T does not match table %s",
			ErrInvalidEntry, entry, tableName)
	}

	t.entries = append(t.entries, entry)

	r.buffered++
	if r.buffered >= r.batchSize {
		return r.Flush()
	}

	return nil
}

// ListTables returns the names of all created tables, sorted.
func (r *SQLiteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Flush writes all buffered entries in a single transaction.
func (r *SQLiteRecorder) Flush() error {
	if r.buffered == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, name := range r.ListTables() {
		if err := r.flushTable(tx, name, r.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, t := range r.tables {
		t.entries = nil
	}
	r.buffered = 0

	return nil
}

func (r *SQLiteRecorder) flushTable(tx *sql.Tx, name string, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	placeholders := structs.Names(t.entries[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := "INSERT INTO " + name + " VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", name, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range t.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", name, err)
		}
	}

	return nil
}

// Close flushes buffered entries and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}

	return r.db.Close()
}
