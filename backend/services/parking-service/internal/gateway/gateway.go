// Package gateway is the remote data and auth boundary. Repositories talk to storage only
// through Gateway, which is constructed once at startup and injected.
package gateway

import "context"

// Gateway reads and writes rows and resolves the calling principal.
//
// Implementations return errors classified with the internal errors package: AuthError,
// NotFoundError, ConflictError, ValidationError or TransportError.
type Gateway interface {
	// CurrentPrincipal returns the principal bound to ctx, if any.
	CurrentPrincipal(ctx context.Context) (string, bool)
	// CreateAnonymousPrincipal creates an anonymous identity and binds it to ctx's Identity.
	CreateAnonymousPrincipal(ctx context.Context) (string, error)
	// Insert stores rec in table and returns the stored row including generated columns.
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	// Query returns rows matching q.
	Query(ctx context.Context, table string, q Query) ([]Record, error)
	// GetByID returns the row with id that also matches scope, or nil when none does.
	GetByID(ctx context.Context, table, id string, scope ...Filter) (Record, error)
	// Update applies patch to the row with id that matches scope and returns the new row.
	Update(ctx context.Context, table, id string, patch Record, scope ...Filter) (Record, error)
	// Delete removes the row with id that matches scope. A miss is a NotFoundError.
	Delete(ctx context.Context, table, id string, scope ...Filter) error
}

// Transactor is implemented by gateways that can run several operations atomically.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Gateway) error) error
}

// RunAtomic runs fn inside a transaction when gw supports one, otherwise directly against gw.
func RunAtomic(ctx context.Context, gw Gateway, fn func(tx Gateway) error) error {
	if t, ok := gw.(Transactor); ok {
		return t.InTx(ctx, fn)
	}
	return fn(gw)
}

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Order sorts query results by a column.
type Order struct {
	Column     string
	Descending bool
}

// Asc orders ascending by column.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders descending by column.
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query selects rows. A zero Limit means no limit.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}
