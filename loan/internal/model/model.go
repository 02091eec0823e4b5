package model

import (
	"strconv"
	"time"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted
}

// CanTransition reports whether a loan may move from s to next.
// Same-state updates are idempotent no-ops; a Completed loan never
// goes back to Active.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusActive && next == StatusCompleted
}

// Date is a calendar day on the wire ("2006-01-02").
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.Format(time.DateOnly))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Interval is a closed date interval. A nil End means the interval
// extends indefinitely from Start.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func NewInterval(start time.Time, end *time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Overlaps reports whether the two intervals share at least one day.
// Open ends count as +infinity and touching boundaries count as an
// overlap: a loan ending on day D conflicts with one starting on D.
func (i Interval) Overlaps(other Interval) bool {
	if i.End != nil && i.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(i.Start) {
		return false
	}
	return true
}

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	BookID     int64      `json:"bookId" db:"book_id"`
	LenderID   int64      `json:"lenderId" db:"lender_id"`
	BorrowerID int64      `json:"borrowerId" db:"borrower_id"`
	StartDate  time.Time  `json:"startDate" db:"start_date"`
	EndDate    *time.Time `json:"endDate,omitempty" db:"end_date"`
	Status     Status     `json:"status" db:"status"`
}

func (l Loan) Interval() Interval {
	return Interval{Start: l.StartDate, End: l.EndDate}
}

type Book struct {
	ID      int64  `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Author  string `json:"author" db:"author"`
	Genre   string `json:"genre" db:"genre"`
	OwnerID int64  `json:"ownerId" db:"owner_id"`
}

type CreateLoanRequest struct {
	BookID     int64  `json:"bookId" validate:"required"`
	LenderID   int64  `json:"lenderId" validate:"required"`
	BorrowerID int64  `json:"borrowerId" validate:"required"`
	StartDate  Date   `json:"startDate" validate:"required"`
	EndDate    *Date  `json:"endDate"`
	Status     Status `json:"status" validate:"omitempty,oneof=Active Completed"`
}

// UpdateLoanRequest carries a partial edit: only non-nil fields change.
// ClearEndDate turns the loan open-ended and wins over EndDate.
type UpdateLoanRequest struct {
	BookID       *int64  `json:"bookId"`
	LenderID     *int64  `json:"lenderId"`
	BorrowerID   *int64  `json:"borrowerId"`
	StartDate    *Date   `json:"startDate"`
	EndDate      *Date   `json:"endDate"`
	ClearEndDate bool    `json:"clearEndDate"`
	Status       *Status `json:"status" validate:"omitempty,oneof=Active Completed"`
}

type ListLoansFilter struct {
	LenderID   *int64
	BorrowerID *int64
	BookID     *int64
	Page       int
	Size       int
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListLoans struct {
	Paging
	Items []Loan `json:"items"`
}
