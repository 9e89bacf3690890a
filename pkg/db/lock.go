package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithForUpdate adds a row-locking clause on dialects that support it.
// SQLite serializes writers on its own and rejects FOR UPDATE, so the
// in-memory test databases skip the hint.
func WithForUpdate(stmt *gorm.DB) *gorm.DB {
	if stmt.Dialector.Name() == "sqlite" {
		return stmt
	}
	return stmt.Clauses(clause.Locking{Strength: "UPDATE"})
}
