package model

import "time"

// Stats is one user's live loan counters, derived from the event log.
type Stats struct {
	UserID      int64     `json:"userId" db:"user_id"`
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
	CountLent   int       `json:"cntLent" db:"cnt_lent"`
	CountBorrow int       `json:"cntBorrowed" db:"cnt_borrowed"`
}

type StatsInfo struct {
	Data []Stats `json:"data"`
}
