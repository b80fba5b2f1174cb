package pg

import (
	"context"
	"database/sql"
	"fmt"

	"folio.dev/internal/audit"
	"folio.dev/internal/paging"
)

var _ audit.Store = (*AuditRepo)(nil)

// AuditRepo implements audit.Store over the append-only audit_log table.
type AuditRepo struct {
	db *sql.DB
}

func (r *AuditRepo) Insert(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	err := r.db.QueryRowContext(ctx, `
		insert into audit_log (ts, action, details, actor_email, request_id)
		values ($1, $2, $3, $4, $5)
		returning id`,
		e.Timestamp, string(e.Action), e.Details, nullString(e.ActorEmail), nullString(e.RequestID),
	).Scan(&e.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

func (r *AuditRepo) Import(ctx context.Context, entries []audit.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			insert into audit_log (id, ts, action, details, actor_email, request_id)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (id) do nothing`,
			e.ID, e.Timestamp, string(e.Action), e.Details, nullString(e.ActorEmail), nullString(e.RequestID),
		); err != nil {
			return fmt.Errorf("import audit entry %d: %w", e.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `select setval('audit_log_id_seq', greatest((select max(id) from audit_log), 1))`); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *AuditRepo) List(ctx context.Context, page, size int) (paging.Page[audit.Entry], error) {
	page, size = paging.Normalize(page, size, audit.DefaultPageSize)
	var total int
	if err := r.db.QueryRowContext(ctx, `select count(*) from audit_log`).Scan(&total); err != nil {
		return paging.Page[audit.Entry]{}, err
	}
	rows, err := r.db.QueryContext(ctx, `
		select id, ts, action, details, actor_email, request_id
		from audit_log
		order by id desc
		limit $1 offset $2`, size, (page-1)*size)
	if err != nil {
		return paging.Page[audit.Entry]{}, err
	}
	defer rows.Close()
	items := make([]audit.Entry, 0, size)
	for rows.Next() {
		var (
			e            audit.Entry
			action       string
			actor, reqID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.Details, &actor, &reqID); err != nil {
			return paging.Page[audit.Entry]{}, err
		}
		e.Action = audit.Action(action)
		e.Timestamp = e.Timestamp.UTC()
		e.ActorEmail = actor.String
		e.RequestID = reqID.String
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return paging.Page[audit.Entry]{}, err
	}
	return paging.Of(items, page, size, total), nil
}
