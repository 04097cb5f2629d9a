// Package datarecording stores structured records in an SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var (
	// ErrInvalidEntry is returned for entries that are not flat structs of
	// scalar fields.
	ErrInvalidEntry = errors.New("datarecording: entry is invalid")

	// ErrNoSuchTable is returned when inserting into a table that was not
	// created.
	ErrNoSuchTable = errors.New("datarecording: table does not exist")
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables.
	ListTables() []string

	// Flush writes all buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// New creates an SQLite recorder writing to path + ".sqlite3". An empty
// path picks a unique name. The file must not exist yet.
func New(path string) (*SQLiteWriter, error) {
	if path == "" {
		path = "dmafifo_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("datarecording: file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("datarecording: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	w := NewWithDB(db)
	w.filename = filename

	return w, nil
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB) *SQLiteWriter {
	w := &SQLiteWriter{
		DB:        db,
		batchSize: 10000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteWriter is a DataRecorder backed by SQLite. It is safe for
// concurrent use.
type SQLiteWriter struct {
	*sql.DB

	mu         sync.Mutex
	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

// Filename returns the database file, if the writer created one.
func (w *SQLiteWriter) Filename() string {
	return w.filename
}

// WithBatchSize sets how many entries are buffered before an automatic
// flush.
func (w *SQLiteWriter) WithBatchSize(n int) *SQLiteWriter {
	w.batchSize = n
	return w
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkEntry(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return ErrInvalidEntry
	}

	for i := 0; i < t.NumField(); i++ {
		if !isAllowedKind(t.Field(i).Type.Kind()) {
			return fmt.Errorf("%w: field %s", ErrInvalidEntry, t.Field(i).Name)
		}
	}

	return nil
}

func checkTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty table name", ErrInvalidEntry)
	}

	for _, c := range name {
		ok := c == '_' ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9')
		if !ok {
			return fmt.Errorf("%w: table name %q", ErrInvalidEntry, name)
		}
	}

	return nil
}

// CreateTable creates a table with one column per field of sampleEntry.
func (w *SQLiteWriter) CreateTable(tableName string, sampleEntry any) error {
	if err := checkTableName(tableName); err != nil {
		return err
	}

	if err := checkEntry(sampleEntry); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	_, err := w.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("datarecording: creating %s: %w", tableName, err)
	}

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}

	return nil
}

// InsertData buffers an entry. The buffer is flushed when it reaches the
// batch size.
func (w *SQLiteWriter) InsertData(tableName string, entry any) error {
	w.mu.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoSuchTable, tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		w.mu.Unlock()
		return fmt.Errorf("%w: %T does not match table %s",
			ErrInvalidEntry, entry, tableName)
	}

	t.entries = append(t.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.mu.Unlock()

	if full {
		return w.Flush()
	}

	return nil
}

// ListTables returns the names of the created tables.
func (w *SQLiteWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	return tables
}

// Flush writes all buffered entries in one transaction.
func (w *SQLiteWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return fmt.Errorf("datarecording: %w", err)
	}

	for tableName, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		err = insertEntries(tx, tableName, t.entries)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("datarecording: %w", err)
	}

	for _, t := range w.tables {
		t.entries = nil
	}

	w.entryCount = 0

	return nil
}

func insertEntries(tx *sql.Tx, tableName string, entries []any) error {
	n := structs.Names(entries[0])
	for i := range n {
		n[i] = "?"
	}

	sqlStr := "INSERT INTO " + tableName +
		" VALUES (" + strings.Join(n, ", ") + ")"

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		return fmt.Errorf("datarecording: preparing %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err = stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("datarecording: inserting into %s: %w",
				tableName, err)
		}
	}

	return nil
}

// Close flushes buffered entries and closes the database.
func (w *SQLiteWriter) Close() error {
	err := w.Flush()
	if err != nil {
		return err
	}

	return w.DB.Close()
}
