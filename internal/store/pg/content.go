package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"folio.dev/internal/content"
)

var _ content.Repository = (*ContentRepo)(nil)

const contentColumns = `id, title, body, status, author_email, created_at, updated_at,
	deleted_at, publish_at, rejection_reason, reviewed_at`

// ContentRepo implements content.Repository. Ids come from content_id_seq.
type ContentRepo struct {
	db *sql.DB
}

func (r *ContentRepo) NextID(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `select nextval('content_id_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

func (r *ContentRepo) Insert(ctx context.Context, it *content.Item) error {
	_, err := r.db.ExecContext(ctx, `
		insert into content (`+contentColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		contentArgs(it)...,
	)
	return err
}

func (r *ContentRepo) Update(ctx context.Context, it *content.Item) error {
	res, err := r.db.ExecContext(ctx, `
		update content set title = $2, body = $3, status = $4, author_email = $5, created_at = $6,
			updated_at = $7, deleted_at = $8, publish_at = $9, rejection_reason = $10, reviewed_at = $11
		where id = $1`,
		contentArgs(it)...,
	)
	if err != nil {
		return err
	}
	return affected(res, content.ErrNotFound)
}

func (r *ContentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from content where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, content.ErrNotFound)
}

func (r *ContentRepo) Get(ctx context.Context, id string) (*content.Item, error) {
	row := r.db.QueryRowContext(ctx, `select `+contentColumns+` from content where id = $1`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.ErrNotFound
	}
	return it, err
}

func (r *ContentRepo) List(ctx context.Context) ([]*content.Item, error) {
	rows, err := r.db.QueryContext(ctx, `select `+contentColumns+` from content order by length(id), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*content.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ContentRepo) Import(ctx context.Context, items []*content.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var maxID int64
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			insert into content (`+contentColumns+`)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			on conflict (id) do nothing`,
			contentArgs(it)...,
		); err != nil {
			return fmt.Errorf("import content %s: %w", it.ID, err)
		}
		if n, err := strconv.ParseInt(it.ID, 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	if maxID > 0 {
		if _, err := tx.ExecContext(ctx,
			`select setval('content_id_seq', greatest($1, (select last_value from content_id_seq)))`, maxID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func contentArgs(it *content.Item) []any {
	return []any{
		it.ID, it.Title, it.Body, string(it.Status), it.AuthorEmail, it.CreatedAt, it.UpdatedAt,
		nullTime(it.DeletedAt), nullTime(it.PublishAt), nullString(it.RejectionReason), nullTime(it.ReviewedAt),
	}
}

func scanItem(row rowScanner) (*content.Item, error) {
	var (
		it                             content.Item
		status                         string
		deleted, publishAt, reviewedAt sql.NullTime
		reason                         sql.NullString
	)
	if err := row.Scan(&it.ID, &it.Title, &it.Body, &status, &it.AuthorEmail, &it.CreatedAt, &it.UpdatedAt,
		&deleted, &publishAt, &reason, &reviewedAt); err != nil {
		return nil, err
	}
	it.Status = content.Status(status)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	it.DeletedAt = timePtr(deleted)
	it.PublishAt = timePtr(publishAt)
	it.ReviewedAt = timePtr(reviewedAt)
	it.RejectionReason = reason.String
	return &it, nil
}
