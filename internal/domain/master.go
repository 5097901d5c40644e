package domain

import "time"

// SRNature classifies the intent of a request (complaint/request/query).
type SRNature struct {
	ID        string
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// SRType classifies the subject domain of a request (card issue, loan...).
type SRType struct {
	ID        string
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// SRStatus is a master row backing a lifecycle state.
type SRStatus struct {
	ID       string
	Code     StatusCode
	Name     string
	IsActive bool
}

// SRTATDays maps a (nature, type) pair to its turnaround target in days.
// The pair is unique; a mapping is never overwritten by auto-allotment.
type SRTATDays struct {
	ID       string
	NatureID string
	TypeID   string
	TATDays  int
	IsActive bool
}
