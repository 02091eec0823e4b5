package repository

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/maramotto/librored/loan/internal/errs"
	"github.com/maramotto/librored/loan/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	GetLoan(ctx context.Context, id int64) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.ListLoansFilter) (model.ListLoans, error)
	CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	UpdateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	DeleteLoan(ctx context.Context, id int64) error

	FindActiveOverlappingForBook(ctx context.Context, bookID int64, iv model.Interval, excludeLoanID *int64) ([]model.Loan, error)
	FindActiveOverlappingForPair(ctx context.Context, borrowerID, lenderID int64, iv model.Interval, excludeLoanID *int64) ([]model.Loan, error)

	GetBook(ctx context.Context, id int64) (model.Book, error)
	ListAvailableBooks(ctx context.Context, ownerID int64) ([]model.Book, error)
	UserExists(ctx context.Context, id int64) (bool, error)

	// WithinTx runs fn against a transaction-scoped repository, so a
	// conflict check and the write it guards land in one transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}

type repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		ext: db,
		log: log.Named("repo"),
	}, nil
}

const (
	loansTableName = `loans`
	booksTableName = `books`
	usersTableName = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var loanColumns = []string{"id", "book_id", "lender_id", "borrower_id", "start_date", "end_date", "status"}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	if _, ok := r.ext.(*sqlx.Tx); ok {
		return fn(ctx, r)
	}
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &repository{db: r.db, ext: tx, log: r.log}
	if err = fn(ctx, txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (r *repository) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoans(ctx context.Context, filter model.ListLoansFilter) (model.ListLoans, error) {
	q := qb.Select(loanColumns...).
		From(loansTableName).
		OrderBy("id")

	if filter.LenderID != nil {
		q = q.Where(sq.Eq{"lender_id": *filter.LenderID})
	}
	if filter.BorrowerID != nil {
		q = q.Where(sq.Eq{"borrower_id": *filter.BorrowerID})
	}
	if filter.BookID != nil {
		q = q.Where(sq.Eq{"book_id": *filter.BookID})
	}
	if filter.Page != 0 && filter.Size != 0 {
		q = q.Limit(uint64(filter.Size)).Offset(uint64((filter.Page - 1) * filter.Size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListLoans{}, err
	}
	r.log.Debug("ListLoans", zap.String("query", query), zap.Any("args", args))

	var loans []model.Loan
	if err := sqlx.SelectContext(ctx, r.ext, &loans, query, args...); err != nil {
		return model.ListLoans{}, err
	}

	return model.ListLoans{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(loans),
		},
		Items: loans,
	}, nil
}

func (r *repository) CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	q, args, err := qb.Insert(loansTableName).
		Columns("book_id", "lender_id", "borrower_id", "start_date", "end_date", "status").
		Values(loan.BookID, loan.LenderID, loan.BorrowerID, loan.StartDate, loan.EndDate, loan.Status).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var created model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &created, q, args...); err != nil {
		r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
		return model.Loan{}, mapConstraintErr(err)
	}
	return created, nil
}

func (r *repository) UpdateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	q, args, err := qb.Update(loansTableName).
		Set("book_id", loan.BookID).
		Set("borrower_id", loan.BorrowerID).
		Set("start_date", loan.StartDate).
		Set("end_date", loan.EndDate).
		Set("status", loan.Status).
		Where(sq.Eq{"id": loan.ID}).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var updated model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &updated, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		r.log.Error("UpdateLoan", zap.String("q", q), zap.Any("args", args))
		return model.Loan{}, mapConstraintErr(err)
	}
	return updated, nil
}

func (r *repository) DeleteLoan(ctx context.Context, id int64) error {
	q, args, err := qb.Delete(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrLoanNotFound
	}
	return nil
}

func (r *repository) FindActiveOverlappingForBook(ctx context.Context, bookID int64, iv model.Interval, excludeLoanID *int64) ([]model.Loan, error) {
	q := r.overlapQuery(iv, excludeLoanID).
		Where(sq.Eq{"book_id": bookID})
	return r.selectLoans(ctx, q)
}

func (r *repository) FindActiveOverlappingForPair(ctx context.Context, borrowerID, lenderID int64, iv model.Interval, excludeLoanID *int64) ([]model.Loan, error) {
	q := r.overlapQuery(iv, excludeLoanID).
		Where(sq.Eq{"borrower_id": borrowerID}).
		Where(sq.Eq{"lender_id": lenderID})
	return r.selectLoans(ctx, q)
}

// overlapQuery matches Active loans whose closed interval intersects the
// candidate, with open ends treated as infinity. Touching boundaries
// intersect.
func (r *repository) overlapQuery(iv model.Interval, excludeLoanID *int64) sq.SelectBuilder {
	q := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"status": model.StatusActive}).
		Where(sq.Expr("start_date <= coalesce(?::date, 'infinity'::date)", iv.End)).
		Where(sq.Expr("coalesce(end_date, 'infinity'::date) >= ?", iv.Start))
	if excludeLoanID != nil {
		q = q.Where(sq.NotEq{"id": *excludeLoanID})
	}
	return q
}

func (r *repository) selectLoans(ctx context.Context, q sq.SelectBuilder) ([]model.Loan, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := sqlx.SelectContext(ctx, r.ext, &loans, query, args...); err != nil {
		r.log.Error("selectLoans", zap.String("q", query), zap.Any("args", args))
		return nil, err
	}
	return loans, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	q, args, err := qb.Select("id", "title", "author", "genre", "owner_id").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

// ListAvailableBooks returns the owner's books with no Active loan
// covering today.
func (r *repository) ListAvailableBooks(ctx context.Context, ownerID int64) ([]model.Book, error) {
	q := `
	select b.id, b.title, b.author, b.genre, b.owner_id
	from books b
	where b.owner_id = $1
	  and not exists (
	    select 1 from loans l
	    where l.book_id = b.id
	      and l.status = 'Active'
	      and current_date between l.start_date and coalesce(l.end_date, 'infinity'::date)
	  )
	order by b.id
`
	var books []model.Book
	if err := sqlx.SelectContext(ctx, r.ext, &books, q, ownerID); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) UserExists(ctx context.Context, id int64) (bool, error) {
	q := `select exists(select 1 from users where id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext, &exists, q, id); err != nil {
		return false, err
	}
	return exists, nil
}

// mapConstraintErr turns the storage-layer overlap backstop into the
// same conflict error the service-level check produces.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation:
			if strings.Contains(pgErr.ConstraintName, "pair") {
				return errs.ErrBorrowerConflict
			}
			return errs.ErrBookConflict
		case pgerrcode.SerializationFailure:
			return errors.Wrap(err, "concurrent update, retry")
		}
	}
	return err
}
