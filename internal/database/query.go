package database

import (
	"context"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query runs a SurrealQL statement and decodes the first statement's rows.
//
//	battles, err := Query[BattleRecord](ctx, db, "SELECT * FROM battle WHERE $p IN players", map[string]any{"p": id})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, NewDBError(err, ErrQueryFailed.Error()).WithQuery(query)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// QueryOne returns the single row of a query, or ErrNotFound. SELECT
// statements without a LIMIT get LIMIT 1.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") && !hasLimitClause(query) {
		query += " LIMIT 1"
	}
	rows, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, NewDBError(ErrNotFound, "query one").WithQuery(query)
	case 1:
		return &rows[0], nil
	default:
		return nil, NewDBError(ErrMultipleResults, "query one").WithQuery(query)
	}
}

// Execute runs a statement and discards its rows.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return NewDBError(err, ErrQueryFailed.Error()).WithQuery(query)
	}
	return nil
}

func hasLimitClause(query string) bool {
	query = " " + strings.ToUpper(query) + " "
	return strings.Contains(query, " LIMIT ")
}
