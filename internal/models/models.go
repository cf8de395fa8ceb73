package models

import "time"

// Status is the coarse presence classification reported by the platform.
type Status string

const (
	StatusOnline    Status = "online"
	StatusOffline   Status = "offline"
	StatusRecently  Status = "recently"
	StatusLastWeek  Status = "last_week"
	StatusLastMonth Status = "last_month"
	StatusUnknown   Status = "unknown"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusRecently, StatusLastWeek, StatusLastMonth, StatusUnknown:
		return true
	}
	return false
}

// User is a tracked account's profile. The id is assigned by the platform.
type User struct {
	ID        int64     `json:"id"`
	Username  *string   `json:"username,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusRecord is one immutable row of the presence history.
type StatusRecord struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Status     Status     `json:"status"`
	WasOnline  *time.Time `json:"was_online,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// UserSummary is a profile joined with its most recent status, used by the
// export API.
type UserSummary struct {
	User
	Status     *Status    `json:"status,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}
