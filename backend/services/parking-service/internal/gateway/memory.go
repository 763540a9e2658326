package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
)

// Op names a gateway operation for fault injection.
type Op string

const (
	OpInsert Op = "insert"
	OpQuery  Op = "query"
	OpGet    Op = "get"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Memory is an in-process Gateway for tests and local runs. Rows live in insertion order.
// InTx serialises transactions and, when fn fails, reverts only the rows the transaction wrote.
// Operations issued outside a transaction are not isolated from it but are never rolled back.
type Memory struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	schema Schema
	tables map[string][]Record
	faults map[faultKey][]error
	now    func() time.Time
	newID  func() string
}

type faultKey struct {
	op    Op
	table string
}

// MemoryOption configures a Memory gateway.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used for created_at defaults.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-memory gateway for schema.
func NewMemory(schema Schema, opts ...MemoryOption) *Memory {
	m := &Memory{
		schema: schema,
		tables: make(map[string][]Record),
		faults: make(map[faultKey][]error),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailNext makes the next op on table return err. Calls queue up in order.
func (m *Memory) FailNext(op Op, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := faultKey{op: op, table: table}
	m.faults[key] = append(m.faults[key], err)
}

func (m *Memory) takeFault(op Op, table string) error {
	key := faultKey{op: op, table: table}
	queue := m.faults[key]
	if len(queue) == 0 {
		return nil
	}
	m.faults[key] = queue[1:]
	return queue[0]
}

// CurrentPrincipal implements Gateway.
func (m *Memory) CurrentPrincipal(ctx context.Context) (string, bool) {
	return currentPrincipal(ctx)
}

// CreateAnonymousPrincipal implements Gateway.
func (m *Memory) CreateAnonymousPrincipal(ctx context.Context) (string, error) {
	return m.createAnonymous(ctx, nil)
}

func (m *Memory) createAnonymous(ctx context.Context, log *undoLog) (string, error) {
	rec, err := m.insert(TablePrincipals, Record{"anonymous": true}, log)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeAuth, "could not create anonymous principal", err)
	}
	id := rec.String("id")
	IdentityFromContext(ctx).bindAnonymous(id)
	return id, nil
}

// Insert implements Gateway.
func (m *Memory) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	return m.insert(table, rec, nil)
}

func (m *Memory) insert(table string, rec Record, log *undoLog) (Record, error) {
	t, err := m.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkRecord(rec); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(OpInsert, table); err != nil {
		return nil, err
	}

	row := make(Record, len(t.Columns))
	for _, c := range t.Columns {
		row[c] = nil
	}
	for c, v := range t.Defaults {
		row[c] = v
	}
	for c, v := range rec {
		row[c] = v
	}
	if row.String("id") == "" {
		row["id"] = m.newID()
	}
	if t.HasColumn("created_at") && row["created_at"] == nil {
		row["created_at"] = m.now().UTC()
	}

	if err := m.checkConstraints(t, row); err != nil {
		return nil, err
	}

	m.tables[table] = append(m.tables[table], row)
	log.record(undoEntry{table: table, id: row.String("id")})
	return row.Clone(), nil
}

func (m *Memory) checkConstraints(t Table, row Record) error {
	for _, existing := range m.tables[t.Name] {
		if equalValues(existing["id"], row["id"]) {
			return apperrors.Conflict(fmt.Sprintf("%s with id %s already exists", t.Name, row.String("id")))
		}
		for _, c := range t.Unique {
			if row[c] != nil && equalValues(existing[c], row[c]) {
				return apperrors.Conflict(fmt.Sprintf("%s.%s must be unique", t.Name, c))
			}
		}
	}
	for column, ref := range t.References {
		if row[column] == nil {
			continue
		}
		if m.find(ref, row.String(column), nil) < 0 {
			return apperrors.NotFound(strings.TrimSuffix(ref, "s"))
		}
	}
	return nil
}

// Query implements Gateway.
func (m *Memory) Query(ctx context.Context, table string, q Query) ([]Record, error) {
	t, err := m.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkQuery(q); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if err := m.takeFault(OpQuery, table); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	var out []Record
	for _, row := range m.tables[table] {
		if matches(row, q.Filters) {
			out = append(out, row.Clone())
		}
	}
	m.mu.Unlock()

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetByID implements Gateway.
func (m *Memory) GetByID(ctx context.Context, table, id string, scope ...Filter) (Record, error) {
	t, err := m.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkFilters(scope); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFault(OpGet, table); err != nil {
		return nil, err
	}
	idx := m.find(table, id, scope)
	if idx < 0 {
		return nil, nil
	}
	return m.tables[table][idx].Clone(), nil
}

// Update implements Gateway.
func (m *Memory) Update(ctx context.Context, table, id string, patch Record, scope ...Filter) (Record, error) {
	return m.update(table, id, patch, scope, nil)
}

func (m *Memory) update(table, id string, patch Record, scope []Filter, log *undoLog) (Record, error) {
	t, err := m.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkRecord(patch); err != nil {
		return nil, err
	}
	if err := t.checkFilters(scope); err != nil {
		return nil, err
	}
	if _, ok := patch["id"]; ok {
		return nil, apperrors.Validation("id cannot be updated")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFault(OpUpdate, table); err != nil {
		return nil, err
	}
	idx := m.find(table, id, scope)
	if idx < 0 {
		return nil, apperrors.NotFound(strings.TrimSuffix(table, "s"))
	}
	row := m.tables[table][idx]
	log.record(undoEntry{table: table, id: id, before: row.Clone()})
	for c, v := range patch {
		row[c] = v
	}
	return row.Clone(), nil
}

// Delete implements Gateway.
func (m *Memory) Delete(ctx context.Context, table, id string, scope ...Filter) error {
	return m.delete(table, id, scope, nil)
}

func (m *Memory) delete(table, id string, scope []Filter, log *undoLog) error {
	t, err := m.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.checkFilters(scope); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFault(OpDelete, table); err != nil {
		return err
	}
	idx := m.find(table, id, scope)
	if idx < 0 {
		return apperrors.NotFound(strings.TrimSuffix(table, "s"))
	}
	rows := m.tables[table]
	log.record(undoEntry{table: table, id: id, before: rows[idx], index: idx, deleted: true})
	m.tables[table] = append(rows[:idx:idx], rows[idx+1:]...)
	return nil
}

// InTx implements Transactor. fn receives a handle whose writes are logged; if fn fails those
// writes are undone newest first and everything else is left in place.
func (m *Memory) InTx(ctx context.Context, fn func(tx Gateway) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{m: m, log: &undoLog{}}
	if err := fn(tx); err != nil {
		m.rollback(tx.log)
		return err
	}
	return nil
}

func (m *Memory) rollback(log *undoLog) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(log.entries) - 1; i >= 0; i-- {
		e := log.entries[i]
		rows := m.tables[e.table]
		switch {
		case e.deleted:
			idx := e.index
			if idx > len(rows) {
				idx = len(rows)
			}
			restored := make([]Record, 0, len(rows)+1)
			restored = append(restored, rows[:idx]...)
			restored = append(restored, e.before)
			m.tables[e.table] = append(restored, rows[idx:]...)
		case e.before != nil:
			if idx := m.find(e.table, e.id, nil); idx >= 0 {
				rows[idx] = e.before
			}
		default:
			if idx := m.find(e.table, e.id, nil); idx >= 0 {
				m.tables[e.table] = append(rows[:idx:idx], rows[idx+1:]...)
			}
		}
	}
}

// undoEntry reverses one write: an insert when before is nil, otherwise an update or delete.
type undoEntry struct {
	table   string
	id      string
	before  Record
	index   int
	deleted bool
}

type undoLog struct {
	entries []undoEntry
}

// record is a no-op on a nil log, which is how writes outside a transaction go unlogged.
// Callers hold m.mu.
func (l *undoLog) record(e undoEntry) {
	if l == nil {
		return
	}
	l.entries = append(l.entries, e)
}

// memoryTx is the Gateway handed to InTx callbacks.
type memoryTx struct {
	m   *Memory
	log *undoLog
}

func (tx *memoryTx) CurrentPrincipal(ctx context.Context) (string, bool) {
	return currentPrincipal(ctx)
}

func (tx *memoryTx) CreateAnonymousPrincipal(ctx context.Context) (string, error) {
	return tx.m.createAnonymous(ctx, tx.log)
}

func (tx *memoryTx) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	return tx.m.insert(table, rec, tx.log)
}

func (tx *memoryTx) Query(ctx context.Context, table string, q Query) ([]Record, error) {
	return tx.m.Query(ctx, table, q)
}

func (tx *memoryTx) GetByID(ctx context.Context, table, id string, scope ...Filter) (Record, error) {
	return tx.m.GetByID(ctx, table, id, scope...)
}

func (tx *memoryTx) Update(ctx context.Context, table, id string, patch Record, scope ...Filter) (Record, error) {
	return tx.m.update(table, id, patch, scope, tx.log)
}

func (tx *memoryTx) Delete(ctx context.Context, table, id string, scope ...Filter) error {
	return tx.m.delete(table, id, scope, tx.log)
}

// InTx joins the running transaction.
func (tx *memoryTx) InTx(ctx context.Context, fn func(tx Gateway) error) error {
	return fn(tx)
}

// find returns the index of the row with id matching scope, or -1. Callers hold m.mu.
func (m *Memory) find(table, id string, scope []Filter) int {
	for i, row := range m.tables[table] {
		if row.String("id") == id && matches(row, scope) {
			return i
		}
	}
	return -1
}

func matches(row Record, filters []Filter) bool {
	for _, f := range filters {
		if !equalValues(row[f.Column], f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Equal(tb)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders NULLs first, then times, numbers and strings by value.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	ra, rb := Record{"v": a}, Record{"v": b}
	if isNumber(a) && isNumber(b) {
		fa, fb := ra.Float64("v"), rb.Float64("v")
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(ra.String("v"), rb.String("v"))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
