// Package window holds the clock and the time windows used to decide when
// reminders are due.
package window

import "time"

// ReminderLead is how far ahead of a start time reminders go out
const ReminderLead = 72 * time.Hour

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.At
}

// Window is an open interval of time, exclusive at both ends
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies strictly inside the window
func (w Window) Contains(t time.Time) bool {
	return t.After(w.From) && t.Before(w.To)
}

// LeadWindow returns (now, now+lead)
func LeadWindow(now time.Time, lead time.Duration) Window {
	return Window{From: now, To: now.Add(lead)}
}

