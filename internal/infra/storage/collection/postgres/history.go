package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/infra/storage"
)

// Verify historyStore satisfies the domain contract.
var _ collection.HistoryRepository = (*historyStore)(nil)

// historyStore implements collection.HistoryRepository using PostgreSQL.
// Appends happen inside requestStore transactions; this store only reads.
type historyStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewHistoryStore creates a new PostgreSQL-backed history repository with
// tracing capabilities.
func NewHistoryStore(pool *pgxpool.Pool, tracer trace.Tracer) *historyStore {
	return &historyStore{db: pool, tracer: tracer}
}

// ListByRequest returns one page of a request's history, oldest first, plus
// the total entry count.
func (r *historyStore) ListByRequest(ctx context.Context, requestID uuid.UUID, page collection.Page) ([]collection.HistoryEntry, int64, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", requestID.String()))

	var (
		entries []collection.HistoryEntry
		total   int64
	)
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.list_collection_history", dbAttrs, func(ctx context.Context) error {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM collection_history WHERE request_id = $1`, pgUUID(requestID)).Scan(&total); err != nil {
			return fmt.Errorf("count collection history error: %w", err)
		}

		limit := page.Limit
		if limit <= 0 {
			limit = 50
		}
		offset := page.Offset
		if offset < 0 {
			offset = 0
		}

		rows, err := r.db.Query(ctx, `
			SELECT id, request_id, occurred_at, result, message, resulting_status
			FROM collection_history
			WHERE request_id = $1
			ORDER BY occurred_at, id
			LIMIT $2 OFFSET $3`,
			pgUUID(requestID), limit, offset,
		)
		if err != nil {
			return fmt.Errorf("list collection history error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id              int64
				reqID           pgtype.UUID
				occurredAt      pgtype.Timestamptz
				result          string
				message         string
				resultingStatus string
			)
			if err := rows.Scan(&id, &reqID, &occurredAt, &result, &message, &resultingStatus); err != nil {
				return fmt.Errorf("scan collection history error: %w", err)
			}
			entries = append(entries, collection.ReconstructHistoryEntry(
				id,
				uuid.UUID(reqID.Bytes),
				occurredAt.Time,
				collection.ParseResultKind(result),
				message,
				collection.ParseStatus(resultingStatus),
			))
		}
		return rows.Err()
	})
	return entries, total, err
}
