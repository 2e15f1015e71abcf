package core

import "time"

// Clock supplies "today" to the engine. Every operation that reasons about
// the current date takes its reference day from an injected Clock rather
// than calling time.Now directly, so tests can pin arbitrary dates.
type Clock interface {
	Today() Date
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Today() Date    { return DateOf(time.Now()) }
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same day. For tests.
type FixedClock struct {
	Day Date
}

func (c FixedClock) Today() Date { return c.Day }

func (c FixedClock) Now() time.Time { return c.Day.Time() }

// Fixed pins the clock to a single day.
func Fixed(d Date) FixedClock { return FixedClock{Day: d} }
