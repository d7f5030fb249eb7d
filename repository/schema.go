package repository

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema creates the users and auth_sessions tables if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*UserModel)(nil),
		(*SessionModel)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
