package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/infra/storage"
)

// userStore manages the analysts requests are attributed to. Deleting a user
// nulls out their attribution on existing requests rather than deleting them.
type userStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool, tracer trace.Tracer) *userStore {
	return &userStore{db: pool, tracer: tracer}
}

// Create inserts a user and returns its assigned id. Existing usernames are
// returned as-is, so repeated registration is idempotent.
func (r *userStore) Create(ctx context.Context, username string) (int64, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("username", username))

	var id int64
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.create_user", dbAttrs, func(ctx context.Context) error {
		err := r.db.QueryRow(ctx, `
			INSERT INTO users (username) VALUES ($1)
			ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
			RETURNING id`,
			username,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("create user error: %w", err)
		}
		return nil
	})
	return id, err
}

// GetID returns the id of the user with the given username, or false when the
// user does not exist.
func (r *userStore) GetID(ctx context.Context, username string) (int64, bool, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("username", username))

	var (
		id    int64
		found bool
	)
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_user_id", dbAttrs, func(ctx context.Context) error {
		err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get user error: %w", err)
		}
		found = true
		return nil
	})
	return id, found, err
}

// Delete removes a user. Requests they created remain, with attribution
// cleared by the foreign key.
func (r *userStore) Delete(ctx context.Context, username string) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("username", username))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.delete_user", dbAttrs, func(ctx context.Context) error {
		if _, err := r.db.Exec(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
			return fmt.Errorf("delete user error: %w", err)
		}
		return nil
	})
}
