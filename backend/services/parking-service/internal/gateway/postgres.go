package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
)

// Postgres error codes the gateway classifies.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Postgres is a Gateway over a PostgreSQL database. Table and column names are checked
// against the schema before they reach SQL; values are always bound as parameters.
type Postgres struct {
	db     queryer
	root   *sqlx.DB
	schema Schema
}

// NewPostgres returns a gateway over db.
func NewPostgres(db *sqlx.DB, schema Schema) *Postgres {
	return &Postgres{db: db, root: db, schema: schema}
}

// CurrentPrincipal implements Gateway.
func (p *Postgres) CurrentPrincipal(ctx context.Context) (string, bool) {
	return currentPrincipal(ctx)
}

// CreateAnonymousPrincipal implements Gateway.
func (p *Postgres) CreateAnonymousPrincipal(ctx context.Context) (string, error) {
	rec, err := p.Insert(ctx, TablePrincipals, Record{"anonymous": true})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeAuth, "could not create anonymous principal", err)
	}
	id := rec.String("id")
	IdentityFromContext(ctx).bindAnonymous(id)
	return id, nil
}

// Insert implements Gateway.
func (p *Postgres) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	t, err := p.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkRecord(rec); err != nil {
		return nil, err
	}

	columns := sortedColumns(rec)
	args := make([]interface{}, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		args[i] = rec[c]
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING *`, quoteIdent(table))
	} else {
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
			quoteIdent(table), joinIdents(columns), strings.Join(placeholders, ", "))
	}

	row := Record{}
	if err := p.db.QueryRowxContext(ctx, query, args...).MapScan(row); err != nil {
		return nil, mapError(table, err)
	}
	return normalize(row), nil
}

// Query implements Gateway.
func (p *Postgres) Query(ctx context.Context, table string, q Query) ([]Record, error) {
	t, err := p.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkQuery(q); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM %s`, quoteIdent(table))
	where, args := whereClause(q.Filters, 1)
	b.WriteString(where)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts[i] = quoteIdent(o.Column) + " " + dir
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := p.db.QueryxContext(ctx, b.String(), args...)
	if err != nil {
		return nil, mapError(table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		row := Record{}
		if err := rows.MapScan(row); err != nil {
			return nil, mapError(table, err)
		}
		out = append(out, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(table, err)
	}
	return out, nil
}

// GetByID implements Gateway.
func (p *Postgres) GetByID(ctx context.Context, table, id string, scope ...Filter) (Record, error) {
	t, err := p.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkFilters(scope); err != nil {
		return nil, err
	}

	where, args := whereClause(append([]Filter{Eq("id", id)}, scope...), 1)
	query := fmt.Sprintf(`SELECT * FROM %s%s LIMIT 1`, quoteIdent(table), where)

	row := Record{}
	err = p.db.QueryRowxContext(ctx, query, args...).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(table, err)
	}
	return normalize(row), nil
}

// Update implements Gateway.
func (p *Postgres) Update(ctx context.Context, table, id string, patch Record, scope ...Filter) (Record, error) {
	t, err := p.schema.Table(table)
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
	if len(patch) == 0 {
		return nil, apperrors.Validation("empty update")
	}

	columns := sortedColumns(patch)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+len(scope)+1)
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
		args = append(args, patch[c])
	}
	where, whereArgs := whereClause(append([]Filter{Eq("id", id)}, scope...), len(columns)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf(`UPDATE %s SET %s%s RETURNING *`, quoteIdent(table), strings.Join(sets, ", "), where)

	row := Record{}
	err = p.db.QueryRowxContext(ctx, query, args...).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperrors.NotFound(strings.TrimSuffix(table, "s"))
	}
	if err != nil {
		return nil, mapError(table, err)
	}
	return normalize(row), nil
}

// Delete implements Gateway.
func (p *Postgres) Delete(ctx context.Context, table, id string, scope ...Filter) error {
	t, err := p.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.checkFilters(scope); err != nil {
		return err
	}

	where, args := whereClause(append([]Filter{Eq("id", id)}, scope...), 1)
	query := fmt.Sprintf(`DELETE FROM %s%s`, quoteIdent(table), where)

	result, err := p.db.ExecContext(ctx, query, args...)
	if isInvalidText(err) {
		return apperrors.NotFound(strings.TrimSuffix(table, "s"))
	}
	if err != nil {
		return mapError(table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(table, err)
	}
	if affected == 0 {
		return apperrors.NotFound(strings.TrimSuffix(table, "s"))
	}
	return nil
}

// InTx implements Transactor.
func (p *Postgres) InTx(ctx context.Context, fn func(tx Gateway) error) error {
	if p.root == nil {
		// Already inside a transaction.
		return fn(p)
	}

	tx, err := p.root.BeginTxx(ctx, nil)
	if err != nil {
		return mapError("", err)
	}
	if err := fn(&Postgres{db: tx, schema: p.schema}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("", err)
	}
	return nil
}

func whereClause(filters []Filter, firstArg int) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	args := make([]interface{}, 0, len(filters))
	n := firstArg
	for i, f := range filters {
		if f.Value == nil {
			parts[i] = quoteIdent(f.Column) + " IS NULL"
			continue
		}
		parts[i] = fmt.Sprintf("%s = $%d", quoteIdent(f.Column), n)
		args = append(args, f.Value)
		n++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func sortedColumns(rec Record) []string {
	columns := make([]string, 0, len(rec))
	for c := range rec {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// normalize converts driver values into the plain types Record accessors expect.
func normalize(row Record) Record {
	for k, v := range row {
		switch val := v.(type) {
		case []byte:
			row[k] = string(val)
		case [16]byte:
			row[k] = uuid.UUID(val).String()
		case int32:
			row[k] = int64(val)
		case time.Time:
			row[k] = val.UTC()
		}
	}
	return row
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidText
}

// mapError classifies driver errors into the gateway taxonomy.
func mapError(table string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperrors.Wrap(apperrors.CodeConflict, fmt.Sprintf("%s: duplicate row", table), err)
		case pgErr.Code == pgForeignKeyViolation:
			return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("%s: referenced row not found", table), err)
		case pgErr.Code == pgNotNullViolation, pgErr.Code == pgCheckViolation, strings.HasPrefix(pgErr.Code, "22"):
			return apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("%s: invalid value", table), err)
		case strings.HasPrefix(pgErr.Code, "08"):
			return apperrors.Transport(err)
		}
		return apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("%s: database error", table), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transport(err)
	}
	return apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("%s: database error", table), err)
}
