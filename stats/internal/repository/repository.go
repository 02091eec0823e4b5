package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/maramotto/librored/pkg/kafka"
	"github.com/maramotto/librored/stats/internal/model"
)

type Repository interface {
	GetStats(ctx context.Context) (model.StatsInfo, error)
	RecordEvent(ctx context.Context, event kafka.EventLoan) error
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

// RecordEvent is idempotent on event_id, so at-least-once delivery
// from the broker cannot double-count.
func (r *repository) RecordEvent(ctx context.Context, event kafka.EventLoan) error {
	q := `insert into loan_events (event_id, event_type, loan_id, book_id, lender_id, borrower_id, status, occurred_at)
	values (@event_id, @event_type, @loan_id, @book_id, @lender_id, @borrower_id, @status, @occurred_at)
	on conflict (event_id) do nothing`
	args := pgx.NamedArgs{
		"event_id":    event.EventID,
		"event_type":  event.EventType,
		"loan_id":     event.LoanID,
		"book_id":     event.BookID,
		"lender_id":   event.LenderID,
		"borrower_id": event.BorrowerID,
		"status":      event.Status,
		"occurred_at": event.Timestamp,
	}
	_, err := r.db.Exec(ctx, q, args)
	return err
}

func (r *repository) GetStats(ctx context.Context) (model.StatsInfo, error) {
	const q = `
	select user_id, max(occurred_at) as last_updated,
	       coalesce(sum(lent), 0)::int as cnt_lent,
	       coalesce(sum(borrowed), 0)::int as cnt_borrowed
	from (
	    select lender_id as user_id, occurred_at,
	           case event_type when 'loan.created' then 1 when 'loan.deleted' then -1 else 0 end as lent,
	           0 as borrowed
	    from loan_events
	    union all
	    select borrower_id, occurred_at, 0,
	           case event_type when 'loan.created' then 1 when 'loan.deleted' then -1 else 0 end
	    from loan_events
	) t
	group by user_id
	order by user_id
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return model.StatsInfo{}, err
	}
	defer rows.Close()
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Stats])
	if err != nil {
		return model.StatsInfo{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return model.StatsInfo{Data: stats}, nil
}
