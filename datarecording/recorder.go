// Package datarecording stores generation results in SQLite so that a run
// can be inspected after it ends.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrInvalidEntry is returned for entries that are not flat structs.
var ErrInvalidEntry = errors.New("entry must be a struct of basic fields")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	sync.Mutex
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

// New creates a DataRecorder writing to <path>.sqlite3. An empty path picks
// a unique name. The file must not exist yet.
func New(path string) (DataRecorder, error) {
	w := newWriter(nil)
	w.dbName = path

	if err := w.init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := newWriter(db)

	atexit.Register(func() { _ = w.Flush() })

	return w
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}
}

// FileName returns the file a recorder created by New writes to.
func FileName(path string) string {
	return path + ".sqlite3"
}

func (t *sqliteWriter) init() error {
	if t.dbName == "" {
		t.dbName = "tdsim_recording_" + xid.New().String()
	}

	filename := FileName(t.dbName)

	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}

	slog.Info("database created for recording", "file", filename)

	t.DB = db

	return nil
}

func isAllowedType(kind reflect.Kind) bool {
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

func fieldNames(sampleEntry any) ([]string, error) {
	structType := reflect.TypeOf(sampleEntry)
	if structType == nil || structType.Kind() != reflect.Struct {
		return nil, ErrInvalidEntry
	}

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() || !isAllowedType(field.Type.Kind()) {
			return nil, fmt.Errorf("%w: field %s", ErrInvalidEntry, field.Name)
		}
	}

	return structs.Names(sampleEntry), nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	names, err := fieldNames(sampleEntry)
	if err != nil {
		return err
	}

	t.Lock()
	defer t.Unlock()

	if _, exists := t.tables[tableName]; exists {
		return fmt.Errorf("table %s already exists", tableName)
	}

	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName +
		` (` + "\n\t" + strings.Join(names, ", \n\t") + "\n" + `);`
	if _, err := t.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (t *sqliteWriter) InsertData(tableName string, entry any) error {
	t.Lock()

	table, exists := t.tables[tableName]
	if !exists {
		t.Unlock()
		return fmt.Errorf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		t.Unlock()
		return fmt.Errorf("%w: %T does not fit table %s",
			ErrInvalidEntry, entry, tableName)
	}

	table.entries = append(table.entries, entry)
	t.entryCount++
	full := t.entryCount >= t.batchSize

	t.Unlock()

	if full {
		return t.Flush()
	}

	return nil
}

func (t *sqliteWriter) ListTables() []string {
	t.Lock()
	defer t.Unlock()

	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (t *sqliteWriter) Flush() error {
	t.Lock()
	defer t.Unlock()

	return t.flushLocked()
}

func (t *sqliteWriter) flushLocked() error {
	if t.entryCount == 0 || t.closed {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		if err := insertAll(tx, tableName, table); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}

	for _, table := range t.tables {
		table.entries = nil
	}
	t.entryCount = 0

	return nil
}

func insertAll(tx *sql.Tx, tableName string, table *table) error {
	placeholders := make([]string, table.structType.NumField())
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range table.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}

	return nil
}

func (t *sqliteWriter) Close() error {
	t.Lock()
	defer t.Unlock()

	if t.closed {
		return nil
	}

	flushErr := t.flushLocked()
	t.closed = true

	return errors.Join(flushErr, t.DB.Close())
}
