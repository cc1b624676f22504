// Package export copies the records of a run into a SQLite database, one
// table per category, for ad-hoc SQL analysis.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// ErrOutputExists is returned when the database file already has tables
// for the run categories.
var ErrOutputExists = errors.New("export: output already holds an export")

// Options configures [Run].
type Options struct {
	// Categories to export. Defaults to every category.
	Categories []beacon.Category

	// Waveforms also writes every event channel as a BLOB row in the
	// "waveform" table.
	Waveforms bool

	// BatchSize is the number of rows per transaction. Defaults to 10000.
	BatchSize int

	Logger logrus.FieldLogger
}

// Summary reports what was written.
type Summary struct {
	Rows      map[beacon.Category]int
	Waveforms int
}

// Run writes run into the SQLite database at dbPath. Each category becomes
// a table named after it, with an "entry" primary key and one column per
// scalar field; array fields are stored as JSON text.
func Run(ctx context.Context, run *beacon.Run, dbPath string, opts Options) (Summary, error) {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = beacon.Categories
	}

	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	w, err := newWriter(dbPath, opts.BatchSize)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Rows: make(map[beacon.Category]int, len(categories))}

	err = w.exec(`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		_ = w.abort()

		return Summary{}, fmt.Errorf("%w: %s: %w", ErrOutputExists, dbPath, err)
	}

	err = w.exec(`INSERT INTO meta (key, value) VALUES ('run', ?), ('dir', ?)`, run.ID, run.Dir)
	if err != nil {
		_ = w.abort()

		return Summary{}, err
	}

	for _, c := range categories {
		n, err := exportCategory(ctx, w, run, c)
		if err != nil {
			_ = w.abort()

			return Summary{}, fmt.Errorf("export %s: %w", c, err)
		}

		summary.Rows[c] = n

		log.WithFields(logrus.Fields{"category": c, "rows": n}).Info("exported category")
	}

	if opts.Waveforms {
		n, err := exportWaveforms(ctx, w, run)
		if err != nil {
			_ = w.abort()

			return Summary{}, fmt.Errorf("export waveforms: %w", err)
		}

		summary.Waveforms = n
	}

	err = w.close()
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}

func exportCategory(ctx context.Context, w *writer, run *beacon.Run, c beacon.Category) (int, error) {
	fields, err := beacon.Fields(c)
	if err != nil {
		return 0, err
	}

	fields = withoutWaveforms(fields)

	attrs := make([]string, len(fields))
	columns := make([]string, len(fields))

	for i, f := range fields {
		attrs[i] = f.QualifiedName()
		columns[i] = f.Name + " " + columnType(f)
	}

	table := string(c)

	err = w.exec(fmt.Sprintf("CREATE TABLE %s (entry INTEGER PRIMARY KEY, %s)", table, strings.Join(columns, ", ")))
	if err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	insert := fmt.Sprintf("INSERT INTO %s (entry, %s) VALUES (?%s)",
		table, strings.Join(names, ", "), strings.Repeat(", ?", len(fields)))

	rows := 0

	var rowErr error

	scanErr := run.Scan(attrs, 0, 0, func(entry int, values []any) bool {
		if rowErr = ctx.Err(); rowErr != nil {
			return false
		}

		args := make([]any, 0, len(values)+1)
		args = append(args, entry)

		for _, v := range values {
			cv, err := columnValue(v)
			if err != nil {
				rowErr = err

				return false
			}

			args = append(args, cv)
		}

		rowErr = w.insert(insert, args...)
		if rowErr != nil {
			return false
		}

		rows++

		return true
	})
	if scanErr != nil {
		return rows, scanErr
	}

	if rowErr != nil {
		return rows, rowErr
	}

	return rows, nil
}

func exportWaveforms(ctx context.Context, w *writer, run *beacon.Run) (int, error) {
	err := w.exec(`CREATE TABLE waveform (
		entry INTEGER NOT NULL,
		board INTEGER NOT NULL,
		channel INTEGER NOT NULL,
		samples BLOB NOT NULL,
		PRIMARY KEY (entry, board, channel)
	) WITHOUT ROWID`)
	if err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	const insert = `INSERT INTO waveform (entry, board, channel, samples) VALUES (?, ?, ?, ?)`

	rows := 0

	var rowErr error

	scanErr := run.Events.Range(0, run.Events.Len(), func(entry int, ev beacon.Event) bool {
		if rowErr = ctx.Err(); rowErr != nil {
			return false
		}

		for board := range beacon.MaxBoards {
			for ch := range beacon.NumChan {
				rowErr = w.insert(insert, entry, board, ch, ev.Channel(board, ch))
				if rowErr != nil {
					return false
				}

				rows++
			}
		}

		return true
	})
	if scanErr != nil {
		return rows, scanErr
	}

	return rows, rowErr
}

// withoutWaveforms drops the event "data" field; waveforms go to their
// own table.
func withoutWaveforms(fields []beacon.Field) []beacon.Field {
	out := fields[:0]

	for _, f := range fields {
		if f.Category == beacon.CategoryEvent && f.Name == "data" {
			continue
		}

		out = append(out, f)
	}

	return out
}

func columnType(f beacon.Field) string {
	switch f.Name {
	case "global_scalers", "beam_scalers", "trigger_thresholds":
		return "TEXT"
	}

	if f.Category == beacon.CategoryEvent && f.Name == "board_id" {
		return "TEXT"
	}

	return "INTEGER"
}

func columnValue(v any) (any, error) {
	switch x := v.(type) {
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case beacon.TrigType:
		return int64(x), nil
	case beacon.Pol:
		return int64(x), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}

	return string(raw), nil
}

// writer batches inserts into transactions of batchSize rows.
type writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmts     map[string]*sql.Stmt
	batchSize int
	count     int
}

func newWriter(dbPath string, batchSize int) (*writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	// Performance tuning for bulk insert
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		_, err = db.Exec(pragma)
		if err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if batchSize <= 0 {
		batchSize = 10000
	}

	w := &writer{db: db, batchSize: batchSize, stmts: make(map[string]*sql.Stmt)}

	err = w.beginTx()
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return w, nil
}

func (w *writer) beginTx() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	w.tx = tx

	return nil
}

func (w *writer) commitTx() error {
	for query, stmt := range w.stmts {
		_ = stmt.Close()

		delete(w.stmts, query)
	}

	err := w.tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (w *writer) exec(query string, args ...any) error {
	_, err := w.tx.Exec(query, args...)

	return err
}

// insert runs query through a statement prepared once per transaction.
func (w *writer) insert(query string, args ...any) error {
	stmt, ok := w.stmts[query]
	if !ok {
		var err error

		stmt, err = w.tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}

		w.stmts[query] = stmt
	}

	_, err := stmt.Exec(args...)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	w.count++
	if w.count < w.batchSize {
		return nil
	}

	w.count = 0

	err = w.commitTx()
	if err != nil {
		return err
	}

	return w.beginTx()
}

func (w *writer) close() error {
	err := w.commitTx()
	if err != nil {
		_ = w.db.Close()

		return err
	}

	return w.db.Close()
}

func (w *writer) abort() error {
	for _, stmt := range w.stmts {
		_ = stmt.Close()
	}

	_ = w.tx.Rollback()

	return w.db.Close()
}
