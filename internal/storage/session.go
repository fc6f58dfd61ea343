package storage

import "time"

const (
	sessionDateLayout = "20060102"
	sessionTimeLayout = "150405Z"
)

// Session identifies one crawl run. It is computed once when the crawl
// starts and shared by every page of the run.
type Session struct {
	start time.Time
}

// NewSession returns the session for a crawl starting at t.
func NewSession(t time.Time) Session {
	return Session{start: t.UTC()}
}

// IsZero reports whether the session was never initialised.
func (s Session) IsZero() bool {
	return s.start.IsZero()
}

// Date is the YYYYMMDD component.
func (s Session) Date() string {
	return s.start.Format(sessionDateLayout)
}

// Time is the HHMMSSZ component.
func (s Session) Time() string {
	return s.start.Format(sessionTimeLayout)
}

func (s Session) String() string {
	return s.Date() + "/" + s.Time()
}
