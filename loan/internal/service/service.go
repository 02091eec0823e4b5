package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/maramotto/librored/loan/internal/errs"
	"github.com/maramotto/librored/loan/internal/model"
	"github.com/maramotto/librored/loan/internal/repository"
)

// Service enforces the loan business rules: non-overlapping possession
// of a book, non-overlapping borrowing within a (lender, borrower) pair,
// lender immutability and the one-way Active -> Completed lifecycle.
// Every mutation validates and writes inside one transaction.
type Service struct {
	log  *zap.Logger
	repo repository.Repository
	now  func() time.Time
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	return s.repo.GetLoan(ctx, id)
}

func (s *Service) ListLoans(ctx context.Context, filter model.ListLoansFilter) (model.ListLoans, error) {
	return s.repo.ListLoans(ctx, filter)
}

func (s *Service) ListAvailableBooks(ctx context.Context, ownerID int64) ([]model.Book, error) {
	return s.repo.ListAvailableBooks(ctx, ownerID)
}

func (s *Service) IsBookAvailable(ctx context.Context, bookID int64, iv model.Interval, excludeLoanID *int64) (bool, error) {
	return bookAvailable(ctx, s.repo, bookID, iv, excludeLoanID)
}

func (s *Service) IsBorrowerPairAvailable(ctx context.Context, borrowerID, lenderID int64, iv model.Interval, excludeLoanID *int64) (bool, error) {
	return pairAvailable(ctx, s.repo, borrowerID, lenderID, iv, excludeLoanID)
}

func (s *Service) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	var created model.Loan
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		loan, err := s.buildLoan(ctx, r, req)
		if err != nil {
			return err
		}
		created, err = r.CreateLoan(ctx, loan)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("loan created", zap.Int64("id", created.ID), zap.Int64("bookId", created.BookID))
	return created, nil
}

// buildLoan runs the create-path checks in order; the first failure wins.
func (s *Service) buildLoan(ctx context.Context, r repository.Repository, req model.CreateLoanRequest) (model.Loan, error) {
	if req.LenderID == req.BorrowerID {
		return model.Loan{}, errs.ErrIdentityConflict
	}

	start := dateOnly(req.StartDate.Time)
	var end *time.Time
	if req.EndDate != nil {
		e := dateOnly(req.EndDate.Time)
		end = &e
	}

	today := s.today()
	if start.Before(today) {
		return model.Loan{}, errors.Wrapf(errs.ErrInvalidStartDate, "start %s", start.Format(time.DateOnly))
	}
	if end != nil {
		if !end.After(today) {
			return model.Loan{}, errors.Wrapf(errs.ErrInvalidEndDate, "end %s", end.Format(time.DateOnly))
		}
		if !end.After(start) {
			return model.Loan{}, errors.Wrapf(errs.ErrEndBeforeStart, "start %s end %s",
				start.Format(time.DateOnly), end.Format(time.DateOnly))
		}
	}

	for _, userID := range []int64{req.LenderID, req.BorrowerID} {
		ok, err := r.UserExists(ctx, userID)
		if err != nil {
			return model.Loan{}, err
		}
		if !ok {
			return model.Loan{}, errors.Wrapf(errs.ErrUserNotFound, "user %d", userID)
		}
	}

	book, err := r.GetBook(ctx, req.BookID)
	if err != nil {
		return model.Loan{}, err
	}
	if book.OwnerID != req.LenderID {
		return model.Loan{}, errors.Wrapf(errs.ErrOwnershipViolation, "book %d owner %d lender %d",
			book.ID, book.OwnerID, req.LenderID)
	}

	iv := model.NewInterval(start, end)
	free, err := bookAvailable(ctx, r, req.BookID, iv, nil)
	if err != nil {
		return model.Loan{}, err
	}
	if !free {
		return model.Loan{}, errors.Wrapf(errs.ErrBookConflict, "book %d", req.BookID)
	}
	free, err = pairAvailable(ctx, r, req.BorrowerID, req.LenderID, iv, nil)
	if err != nil {
		return model.Loan{}, err
	}
	if !free {
		return model.Loan{}, errors.Wrapf(errs.ErrBorrowerConflict, "borrower %d lender %d",
			req.BorrowerID, req.LenderID)
	}

	status := req.Status
	if status == "" {
		status = model.StatusActive
	}
	if !status.Valid() {
		return model.Loan{}, errs.ErrInvalidStatus
	}

	return model.Loan{
		BookID:     req.BookID,
		LenderID:   req.LenderID,
		BorrowerID: req.BorrowerID,
		StartDate:  start,
		EndDate:    end,
		Status:     status,
	}, nil
}

// UpdateLoan merges the partial request into the stored loan, validates
// the full candidate state, then persists it wholesale. Nothing is
// written when any check fails.
func (s *Service) UpdateLoan(ctx context.Context, id int64, req model.UpdateLoanRequest) (model.Loan, error) {
	var updated model.Loan
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		loan, err := r.GetLoan(ctx, id)
		if err != nil {
			return err
		}

		if req.LenderID != nil && *req.LenderID != loan.LenderID {
			return errors.Wrapf(errs.ErrLenderImmutable, "loan %d lender %d", loan.ID, loan.LenderID)
		}

		var bookChanged, borrowerChanged, datesChanged bool

		if req.BookID != nil {
			book, err := r.GetBook(ctx, *req.BookID)
			if err != nil {
				return err
			}
			if book.OwnerID != loan.LenderID {
				return errors.Wrapf(errs.ErrOwnershipViolation, "book %d owner %d lender %d",
					book.ID, book.OwnerID, loan.LenderID)
			}
			bookChanged = *req.BookID != loan.BookID
			loan.BookID = *req.BookID
		}

		if req.BorrowerID != nil && *req.BorrowerID != loan.BorrowerID {
			if *req.BorrowerID == loan.LenderID {
				return errs.ErrIdentityConflict
			}
			ok, err := r.UserExists(ctx, *req.BorrowerID)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(errs.ErrUserNotFound, "user %d", *req.BorrowerID)
			}
			loan.BorrowerID = *req.BorrowerID
			borrowerChanged = true
		}

		if req.StartDate != nil {
			loan.StartDate = dateOnly(req.StartDate.Time)
			datesChanged = true
		}
		switch {
		case req.ClearEndDate:
			loan.EndDate = nil
			datesChanged = true
		case req.EndDate != nil:
			e := dateOnly(req.EndDate.Time)
			loan.EndDate = &e
			datesChanged = true
		}
		if datesChanged && loan.EndDate != nil && !loan.EndDate.After(loan.StartDate) {
			return errors.Wrapf(errs.ErrEndBeforeStart, "start %s end %s",
				loan.StartDate.Format(time.DateOnly), loan.EndDate.Format(time.DateOnly))
		}

		iv := loan.Interval()
		if bookChanged || datesChanged {
			free, err := bookAvailable(ctx, r, loan.BookID, iv, &loan.ID)
			if err != nil {
				return err
			}
			if !free {
				return errors.Wrapf(errs.ErrBookConflict, "book %d", loan.BookID)
			}
		}
		if bookChanged || datesChanged || borrowerChanged {
			free, err := pairAvailable(ctx, r, loan.BorrowerID, loan.LenderID, iv, &loan.ID)
			if err != nil {
				return err
			}
			if !free {
				return errors.Wrapf(errs.ErrBorrowerConflict, "borrower %d lender %d",
					loan.BorrowerID, loan.LenderID)
			}
		}

		if req.Status != nil {
			if !req.Status.Valid() {
				return errs.ErrInvalidStatus
			}
			if !loan.Status.CanTransition(*req.Status) {
				return errors.Wrapf(errs.ErrIllegalReactivation, "loan %d", loan.ID)
			}
			loan.Status = *req.Status
		}

		updated, err = r.UpdateLoan(ctx, loan)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	return updated, nil
}

// DeleteLoan removes the loan without business-rule checks; a delete
// affecting zero rows reports ErrLoanNotFound.
func (s *Service) DeleteLoan(ctx context.Context, id int64) error {
	return s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		return r.DeleteLoan(ctx, id)
	})
}

func bookAvailable(ctx context.Context, r repository.Repository, bookID int64, iv model.Interval, excludeLoanID *int64) (bool, error) {
	loans, err := r.FindActiveOverlappingForBook(ctx, bookID, iv, excludeLoanID)
	if err != nil {
		return false, err
	}
	return len(loans) == 0, nil
}

func pairAvailable(ctx context.Context, r repository.Repository, borrowerID, lenderID int64, iv model.Interval, excludeLoanID *int64) (bool, error) {
	loans, err := r.FindActiveOverlappingForPair(ctx, borrowerID, lenderID, iv, excludeLoanID)
	if err != nil {
		return false, err
	}
	return len(loans) == 0, nil
}

func (s *Service) today() time.Time {
	return dateOnly(s.now().UTC())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
