// Package postgres persists collection requests and their attempt history.
// Every mutation is expressed as a conditional update guarded by the expected
// prior state, so concurrent workers and administrators coordinate purely
// through the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/infra/storage"
)

// Verify requestStore satisfies the domain contract.
var _ collection.RequestRepository = (*requestStore)(nil)

// requestStore implements collection.RequestRepository using PostgreSQL as
// the backing store.
type requestStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewRequestStore creates a new PostgreSQL-backed request repository with
// tracing capabilities.
func NewRequestStore(pool *pgxpool.Pool, tracer trace.Tracer) *requestStore {
	return &requestStore{db: pool, tracer: tracer}
}

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const defaultDBTimeout = 5 * time.Second

// claimCandidateBatch bounds how many claim candidates one call inspects
// before reporting no work.
const claimCandidateBatch = 10

const requestColumns = `
	request_id, observable_type, observable_key, collector_name, case_id,
	requested_by, status, result, result_message, lock_token, lock_acquired_at,
	cancel_requested, retry_count, max_retries,
	collected_artifact_path, collected_artifact_hash, created_at, last_attempted_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanRequest(row rowScanner) (*collection.Request, error) {
	var (
		id, caseID      pgtype.UUID
		obsType, obsKey string
		collectorName   string
		requestedBy     pgtype.Int8
		status          string
		result          pgtype.Text
		resultMessage   pgtype.Text
		lockToken       pgtype.UUID
		lockAcquiredAt  pgtype.Timestamptz
		cancelRequested bool
		retryCount      int32
		maxRetries      int32
		artifactPath    pgtype.Text
		artifactHash    pgtype.Text
		createdAt       pgtype.Timestamptz
		lastAttemptedAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &obsType, &obsKey, &collectorName, &caseID,
		&requestedBy, &status, &result, &resultMessage, &lockToken, &lockAcquiredAt,
		&cancelRequested, &retryCount, &maxRetries,
		&artifactPath, &artifactHash, &createdAt, &lastAttemptedAt,
	); err != nil {
		return nil, err
	}

	var resultKind *collection.ResultKind
	if result.Valid {
		k := collection.ParseResultKind(result.String)
		resultKind = &k
	}

	var token *uuid.UUID
	if lockToken.Valid {
		t := uuid.UUID(lockToken.Bytes)
		token = &t
	}

	var userID *int64
	if requestedBy.Valid {
		v := requestedBy.Int64
		userID = &v
	}

	return collection.ReconstructRequest(
		uuid.UUID(id.Bytes),
		collection.ReconstructObservable(obsType, obsKey),
		collectorName,
		uuid.UUID(caseID.Bytes),
		userID,
		collection.ParseStatus(status),
		resultKind,
		resultMessage.String,
		token,
		lockAcquiredAt.Time,
		cancelRequested,
		int(retryCount),
		int(maxRetries),
		artifactPath.String,
		artifactHash.String,
		createdAt.Time,
		lastAttemptedAt.Time,
	), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID { return pgtype.UUID{Bytes: id, Valid: true} }

func pgText(s string) pgtype.Text { return pgtype.Text{String: s, Valid: s != ""} }

// Create persists a new request in the NEW state.
func (r *requestStore) Create(ctx context.Context, req *collection.Request) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("request_id", req.ID().String()),
		attribute.String("collector_name", req.CollectorName()),
		attribute.String("observable_type", req.Observable().Type()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.create_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		var requestedBy pgtype.Int8
		if req.RequestedBy() != nil {
			requestedBy = pgtype.Int8{Int64: *req.RequestedBy(), Valid: true}
		}

		_, err := r.db.Exec(ctx, `
			INSERT INTO collection_requests (
				request_id, observable_type, observable_key, collector_name,
				case_id, requested_by, status, max_retries, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			pgUUID(req.ID()),
			req.Observable().Type(),
			req.Observable().Key(),
			req.CollectorName(),
			pgUUID(req.CaseID()),
			requestedBy,
			req.Status().String(),
			req.MaxRetries(),
			req.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("insert collection request error: %w", err)
		}
		return nil
	})
}

// Get returns the request with the given id.
func (r *requestStore) Get(ctx context.Context, id uuid.UUID) (*collection.Request, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", id.String()))

	var req *collection.Request
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_collection_request", dbAttrs, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM collection_requests WHERE request_id = $1`, pgUUID(id))

		var err error
		req, err = scanRequest(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return collection.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("get collection request error: %w", err)
		}
		return nil
	})
	return req, err
}

// FindPending returns the most recent non-COMPLETED request for the same
// collector, observable and case.
func (r *requestStore) FindPending(ctx context.Context, collectorName string, obs collection.Observable, caseID uuid.UUID) (*collection.Request, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("collector_name", collectorName),
		attribute.String("observable_type", obs.Type()),
	)

	var req *collection.Request
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.find_pending_collection_request", dbAttrs, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, `
			SELECT `+requestColumns+`
			FROM collection_requests
			WHERE collector_name = $1
			  AND observable_type = $2
			  AND observable_key = $3
			  AND case_id = $4
			  AND status != 'COMPLETED'
			ORDER BY created_at DESC
			LIMIT 1`,
			collectorName, obs.Type(), obs.Key(), pgUUID(caseID),
		)

		var err error
		req, err = scanRequest(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return collection.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("find pending collection request error: %w", err)
		}
		return nil
	})
	return req, err
}

// Claim takes exclusive ownership of the oldest eligible NEW request matching
// one of the capabilities. Candidates are selected FIFO, then each is taken
// with a conditional update; losing the race for one candidate moves on to
// the next.
func (r *requestStore) Claim(ctx context.Context, caps []collection.Capability, elig collection.ClaimEligibility) (*collection.Request, error) {
	if len(caps) == 0 {
		return nil, collection.ErrNoWork
	}

	dbAttrs := append(defaultDBAttributes, attribute.Int("capability_count", len(caps)))

	var claimed *collection.Request
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.claim_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		candidates, err := r.claimCandidates(ctx, caps, elig)
		if err != nil {
			return err
		}

		token := uuid.New()
		for _, candidate := range candidates {
			row := r.db.QueryRow(ctx, `
				UPDATE collection_requests
				SET status = 'IN_PROGRESS', lock_token = $2, lock_acquired_at = now()
				WHERE request_id = $1 AND status = 'NEW'
				RETURNING `+requestColumns,
				pgUUID(candidate), pgUUID(token),
			)

			claimed, err = scanRequest(row)
			if errors.Is(err, pgx.ErrNoRows) {
				// Another worker won this candidate; try the next one.
				continue
			}
			if err != nil {
				return fmt.Errorf("claim collection request error: %w", err)
			}
			return nil
		}

		return collection.ErrNoWork
	})
	return claimed, err
}

// claimCandidates selects claim-eligible NEW request ids, oldest first. A
// request is eligible when its capability pair matches, its exponential retry
// backoff has elapsed, and it is still inside the collection window.
func (r *requestStore) claimCandidates(ctx context.Context, caps []collection.Capability, elig collection.ClaimEligibility) ([]uuid.UUID, error) {
	var sb strings.Builder
	args := []any{
		elig.InitialRetryDelay.Seconds(),
		elig.MaxRetryDelay.Seconds(),
		time.Now().UTC().Add(-elig.MaxCollectionAge),
	}

	sb.WriteString(`
		SELECT request_id
		FROM collection_requests
		WHERE status = 'NEW'
		  AND created_at > $3
		  AND (
			last_attempted_at IS NULL
			OR last_attempted_at + make_interval(secs => LEAST($1 * power(2, retry_count), $2)) <= now()
		  )
		  AND (observable_type, collector_name) IN (`)
	for i, capability := range caps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, capability.ObservableType, capability.CollectorName)
	}
	sb.WriteString(fmt.Sprintf(`)
		ORDER BY created_at
		LIMIT %d`, claimCandidateBatch))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select claim candidates error: %w", err)
	}
	defer rows.Close()

	var candidates []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim candidate error: %w", err)
		}
		candidates = append(candidates, uuid.UUID(id.Bytes))
	}
	return candidates, rows.Err()
}

// Resolve applies an attempt outcome to a request still owned under the given
// lock token. The head row update and the history append commit atomically.
func (r *requestStore) Resolve(ctx context.Context, id, lockToken uuid.UUID, outcome collection.AttemptOutcome) (*collection.Request, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("request_id", id.String()),
		attribute.String("result", outcome.Kind.String()),
	)

	var req *collection.Request
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.resolve_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM collection_requests WHERE request_id = $1 FOR UPDATE`, pgUUID(id))
		req, err = scanRequest(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return collection.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("lock collection request error: %w", err)
		}

		// Ownership check: a stale-lock reclaim or administrative action may
		// have taken the request away from this worker mid-attempt.
		if req.Status() != collection.StatusInProgress || req.LockToken() == nil || *req.LockToken() != lockToken {
			return collection.ErrNotEligible
		}

		resolution, err := req.ResolveAttempt(outcome.Kind, outcome.Message, outcome.ArtifactPath, outcome.ArtifactHash, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("resolve attempt error: %w", err)
		}

		var result pgtype.Text
		if req.Result() != nil {
			result = pgtype.Text{String: req.Result().String(), Valid: true}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE collection_requests
			SET status = $2, result = $3, result_message = $4,
			    lock_token = NULL, lock_acquired_at = NULL,
			    retry_count = $5,
			    collected_artifact_path = $6, collected_artifact_hash = $7,
			    last_attempted_at = $8
			WHERE request_id = $1 AND status = 'IN_PROGRESS' AND lock_token = $9`,
			pgUUID(id),
			req.Status().String(),
			result,
			pgText(req.ResultMessage()),
			req.RetryCount(),
			pgText(req.ArtifactPath()),
			pgText(req.ArtifactHash()),
			req.LastAttemptedAt(),
			pgUUID(lockToken),
		)
		if err != nil {
			return fmt.Errorf("update collection request error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return collection.ErrNotEligible
		}

		if err := insertHistory(ctx, tx, resolution.Entry); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	return req, err
}

// Cancel finalizes a NEW request as CANCELLED.
func (r *requestStore) Cancel(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", id.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.cancel_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE collection_requests
			SET status = 'COMPLETED', result = 'CANCELLED', lock_token = NULL, lock_acquired_at = NULL
			WHERE request_id = $1 AND status = 'NEW'`,
			pgUUID(id),
		)
		if err != nil {
			return fmt.Errorf("cancel collection request error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.eligibilityError(ctx, id)
		}

		entry := collection.NewHistoryEntry(id, collection.ResultCancelled, "cancelled by administrator", collection.StatusCompleted, time.Now().UTC())
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// RequestCancel records a cooperative cancellation intent on an IN_PROGRESS
// request. The owning worker observes the flag when it resolves the attempt.
func (r *requestStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", id.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.request_cancel_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		tag, err := r.db.Exec(ctx, `
			UPDATE collection_requests
			SET cancel_requested = TRUE
			WHERE request_id = $1 AND status = 'IN_PROGRESS'`,
			pgUUID(id),
		)
		if err != nil {
			return fmt.Errorf("request cancel error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.eligibilityError(ctx, id)
		}
		return nil
	})
}

// ResetForRetry returns a failed or exhausted COMPLETED request to NEW with
// retry bookkeeping cleared.
func (r *requestStore) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", id.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.reset_collection_request_for_retry", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		kinds := collection.RetryableResultKinds()
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}

		tag, err := r.db.Exec(ctx, `
			UPDATE collection_requests
			SET status = 'NEW', result = NULL, result_message = NULL,
			    lock_token = NULL, lock_acquired_at = NULL,
			    cancel_requested = FALSE, retry_count = 0, last_attempted_at = NULL
			WHERE request_id = $1 AND status = 'COMPLETED' AND result = ANY($2)`,
			pgUUID(id), names,
		)
		if err != nil {
			return fmt.Errorf("reset collection request error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.eligibilityError(ctx, id)
		}
		return nil
	})
}

// Delete removes a request in any state, cascading its history.
func (r *requestStore) Delete(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("request_id", id.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.delete_collection_request", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		tag, err := r.db.Exec(ctx, `DELETE FROM collection_requests WHERE request_id = $1`, pgUUID(id))
		if err != nil {
			return fmt.Errorf("delete collection request error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return collection.ErrRequestNotFound
		}
		return nil
	})
}

// ReclaimStale resets IN_PROGRESS requests whose lock is older than the given
// age back to NEW, recording the reclaim in each request's history.
func (r *requestStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("older_than", olderThan.String()))

	var reclaimed int
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.reclaim_stale_collection_requests", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		cutoff := time.Now().UTC().Add(-olderThan)
		tag, err := r.db.Exec(ctx, `
			WITH reclaimed AS (
				UPDATE collection_requests
				SET status = 'NEW', lock_token = NULL, lock_acquired_at = NULL
				WHERE status = 'IN_PROGRESS' AND lock_acquired_at <= $1
				RETURNING request_id
			)
			INSERT INTO collection_history (request_id, result, message, resulting_status)
			SELECT request_id, 'ERROR', 'stale lock reclaimed', 'NEW' FROM reclaimed`,
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("reclaim stale collection requests error: %w", err)
		}
		reclaimed = int(tag.RowsAffected())
		return nil
	})
	return reclaimed, err
}

// ExpireOverdue finalizes NEW requests created more than the given age ago as
// FAILED, recording the expiry in each request's history.
func (r *requestStore) ExpireOverdue(ctx context.Context, olderThan time.Duration) (int, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("older_than", olderThan.String()))

	var expired int
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.expire_overdue_collection_requests", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
		defer cancel()

		cutoff := time.Now().UTC().Add(-olderThan)
		tag, err := r.db.Exec(ctx, `
			WITH expired AS (
				UPDATE collection_requests
				SET status = 'COMPLETED', result = 'FAILED', result_message = 'collection window expired'
				WHERE status = 'NEW' AND created_at <= $1
				RETURNING request_id
			)
			INSERT INTO collection_history (request_id, result, message, resulting_status)
			SELECT request_id, 'FAILED', 'collection window expired', 'COMPLETED' FROM expired`,
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("expire overdue collection requests error: %w", err)
		}
		expired = int(tag.RowsAffected())
		return nil
	})
	return expired, err
}

// sortColumns maps console sort fields to their columns. Only values from
// this map ever reach the SQL text.
var sortColumns = map[collection.SortField]string{
	collection.SortFieldID:        "request_id",
	collection.SortFieldCollector: "collector_name",
	collection.SortFieldType:      "observable_type",
	collection.SortFieldValue:     "observable_key",
	collection.SortFieldStatus:    "status",
	collection.SortFieldResult:    "result",
	collection.SortFieldCreatedAt: "created_at",
}

// List returns one page of the filtered request view plus the total match count.
func (r *requestStore) List(ctx context.Context, q collection.ListQuery) ([]*collection.Request, int64, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("sort_by", string(q.SortBy)))

	var (
		requests []*collection.Request
		total    int64
	)
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.list_collection_requests", dbAttrs, func(ctx context.Context) error {
		where, args := buildListFilter(q.Filter)

		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM collection_requests`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count collection requests error: %w", err)
		}

		column, ok := sortColumns[q.SortBy]
		if !ok {
			column = "request_id"
		}
		direction := "DESC"
		if q.Direction == collection.SortAsc {
			direction = "ASC"
		}

		limit := q.Page.Limit
		if limit <= 0 {
			limit = 50
		}
		offset := q.Page.Offset
		if offset < 0 {
			offset = 0
		}

		query := fmt.Sprintf(`SELECT %s FROM collection_requests%s ORDER BY %s %s LIMIT %d OFFSET %d`,
			requestColumns, where, column, direction, limit, offset)

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list collection requests error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			req, err := scanRequest(rows)
			if err != nil {
				return fmt.Errorf("scan collection request error: %w", err)
			}
			requests = append(requests, req)
		}
		return rows.Err()
	})
	return requests, total, err
}

func buildListFilter(f collection.ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.ID != nil {
		add("request_id = $%d", pgUUID(*f.ID))
	}
	if f.CollectorName != "" {
		add("collector_name = $%d", f.CollectorName)
	}
	if f.ObservableType != "" {
		add("observable_type = $%d", f.ObservableType)
	}
	if f.ObservableKey != "" {
		add("observable_key ILIKE $%d", "%"+f.ObservableKey+"%")
	}
	if f.Status != "" && f.Status != collection.StatusUnspecified {
		add("status = $%d", f.Status.String())
	}
	if f.Result != "" && f.Result != collection.ResultUnspecified {
		add("result = $%d", f.Result.String())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// eligibilityError distinguishes a missing request from one in the wrong
// state after a conditional update matched zero rows.
func (r *requestStore) eligibilityError(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collection_requests WHERE request_id = $1)`, pgUUID(id)).Scan(&exists); err != nil {
		return fmt.Errorf("check collection request existence error: %w", err)
	}
	if !exists {
		return collection.ErrRequestNotFound
	}
	return collection.ErrNotEligible
}

// insertHistory appends one history entry inside the caller's transaction.
func insertHistory(ctx context.Context, tx pgx.Tx, entry collection.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO collection_history (request_id, occurred_at, result, message, resulting_status)
		VALUES ($1, $2, $3, $4, $5)`,
		pgUUID(entry.RequestID()),
		entry.OccurredAt(),
		entry.Result().String(),
		entry.Message(),
		entry.ResultingStatus().String(),
	)
	if err != nil {
		return fmt.Errorf("insert collection history error: %w", err)
	}
	return nil
}
