// Package table implements the lead table over a CSV document. The document
// lives in a Store (a local file or an S3 object) and is rewritten in full
// after every cell update so a crash never loses more than the current row.
package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sync"

	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

// ErrNotFound is returned by a Store whose document does not exist.
var ErrNotFound = errors.New("table: document not found")

// Store loads and saves the raw CSV document.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	String() string
}

// Table is a dispatch.TableSource and dispatch.TableWriter over a CSV Store.
type Table struct {
	store Store

	mu      sync.Mutex
	records [][]string
	loaded  bool
}

// New creates a Table backed by store.
func New(store Store) *Table {
	return &Table{store: store}
}

// FetchAll reads the document and returns its first record as the header.
// An empty document yields an empty dataset; a missing one is a connection
// error.
func (t *Table) FetchAll(ctx context.Context) (*domain.Dataset, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.load(ctx); err != nil {
		return nil, err
	}

	ds := &domain.Dataset{}
	if len(t.records) > 0 {
		ds.Header = copyRow(t.records[0])
		for _, r := range t.records[1:] {
			ds.Rows = append(ds.Rows, copyRow(r))
		}
	}
	return ds, nil
}

// SetCell writes value at the 1-based row and 0-based column, padding the
// row with empty cells when it is shorter than column.
func (t *Table) SetCell(ctx context.Context, ordinal, column int, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		if err := t.load(ctx); err != nil {
			return err
		}
	}
	idx := ordinal - 1
	if idx < 0 || idx >= len(t.records) || column < 0 {
		return fmt.Errorf("cell (%d, %d) is outside %s", ordinal, column, t.store)
	}

	prev := t.records[idx]
	row := copyRow(prev)
	for len(row) <= column {
		row = append(row, "")
	}
	row[column] = value
	t.records[idx] = row

	data, err := encode(t.records)
	if err == nil {
		err = t.store.Save(ctx, data)
	}
	if err != nil {
		t.records[idx] = prev
		return fmt.Errorf("saving %s: %w", t.store, err)
	}
	return nil
}

func (t *Table) load(ctx context.Context) error {
	data, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading %s: %v", dispatch.ErrConnection, t.store, err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: parsing %s: %v", dispatch.ErrConnection, t.store, err)
	}
	t.records, t.loaded = records, true
	return nil
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyRow(r []string) []string {
	return append([]string(nil), r...)
}
