package errs

import (
	"errors"
)

// Every business-rule failure maps to one sentinel so callers can
// translate each kind into a distinct user-facing message.
var (
	ErrIdentityConflict    = errors.New("lender and borrower cannot be the same person")
	ErrInvalidStartDate    = errors.New("start date must be today or in the future")
	ErrInvalidEndDate      = errors.New("end date must be in the future")
	ErrEndBeforeStart      = errors.New("end date must be after start date")
	ErrOwnershipViolation  = errors.New("book is not owned by the lender")
	ErrBookConflict        = errors.New("book is already loaned out during the date range")
	ErrBorrowerConflict    = errors.New("borrower already has an active loan from this lender during the date range")
	ErrLenderImmutable     = errors.New("lender cannot be changed")
	ErrIllegalReactivation = errors.New("completed loan cannot be reactivated")
	ErrInvalidStatus       = errors.New("invalid loan status")

	ErrLoanNotFound = errors.New("loan not found")
	ErrBookNotFound = errors.New("book not found")
	ErrUserNotFound = errors.New("user not found")
)
