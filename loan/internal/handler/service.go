package handler

import (
	"context"

	"github.com/maramotto/librored/loan/internal/model"
	"github.com/maramotto/librored/loan/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LoanService interface {
	GetLoan(ctx context.Context, id int64) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.ListLoansFilter) (model.ListLoans, error)
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	UpdateLoan(ctx context.Context, id int64, req model.UpdateLoanRequest) (model.Loan, error)
	DeleteLoan(ctx context.Context, id int64) error
	IsBookAvailable(ctx context.Context, bookID int64, iv model.Interval, excludeLoanID *int64) (bool, error)
	IsBorrowerPairAvailable(ctx context.Context, borrowerID, lenderID int64, iv model.Interval, excludeLoanID *int64) (bool, error)
	ListAvailableBooks(ctx context.Context, ownerID int64) ([]model.Book, error)
}

var _ LoanService = (*service.Service)(nil)
