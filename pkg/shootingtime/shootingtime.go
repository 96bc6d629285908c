// Package shootingtime models when a photo was taken: either a precise instant
// or just the day it was taken on.
package shootingtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrFormat is returned when a value is neither a date nor a date-time.
var ErrFormat = errors.New("unrecognized shooting time")

const dateLayout = "2006-01-02"

// Precise layouts, tried in order after the date-only one fails.
var preciseLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ShootingTime is either Precise (date and time) or Approximate (date only).
// The zero value is the approximate day 0001-01-01.
type ShootingTime struct {
	t       time.Time
	precise bool
	zoned   bool
}

// Approximate returns a date-only shooting time.
func Approximate(year int, month time.Month, day int) ShootingTime {
	return ShootingTime{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Precise returns a shooting time for an exact instant. Times in time.UTC are
// treated as local wall-clock values with no offset.
func Precise(t time.Time) ShootingTime {
	zoned := t.Location() != time.UTC
	return ShootingTime{t: t, precise: true, zoned: zoned}
}

// Parse reads the textual encoding. A bare date always parses as Approximate,
// even though a date-time grammar could match it as a prefix.
func Parse(s string) (ShootingTime, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return ShootingTime{t: d}, nil
	}
	for _, layout := range preciseLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return ShootingTime{t: t, precise: true, zoned: strings.HasSuffix(layout, "Z07:00")}, nil
	}
	return ShootingTime{}, fmt.Errorf("%w: %q", ErrFormat, s)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) ShootingTime {
	st, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return st
}

// FromValue converts a decoded TOML value.
func FromValue(v interface{}) (ShootingTime, error) {
	switch x := v.(type) {
	case toml.LocalDate:
		return Approximate(x.Year, time.Month(x.Month), x.Day), nil
	case toml.LocalDateTime:
		return Precise(x.AsTime(time.UTC)), nil
	case time.Time:
		return ShootingTime{t: x, precise: true, zoned: true}, nil
	case string:
		return Parse(x)
	case ShootingTime:
		return x, nil
	default:
		return ShootingTime{}, fmt.Errorf("%w: value of type %T", ErrFormat, v)
	}
}

// IsPrecise reports whether the time of day is known.
func (s ShootingTime) IsPrecise() bool { return s.precise }

// Time returns the instant used for ordering. Approximate values are midnight
// UTC of their day.
func (s ShootingTime) Time() time.Time { return s.t }

// Compare returns -1, 0 or +1.
func (s ShootingTime) Compare(o ShootingTime) int {
	return s.t.Compare(o.t)
}

func (s ShootingTime) Before(o ShootingTime) bool { return s.t.Before(o.t) }

// Equal is ordering equality: Approximate(d) equals Precise(d 00:00:00).
func (s ShootingTime) Equal(o ShootingTime) bool { return s.t.Equal(o.t) }

// String returns the textual encoding accepted by Parse.
func (s ShootingTime) String() string {
	switch {
	case !s.precise:
		return s.t.Format(dateLayout)
	case s.zoned:
		return s.t.Format("2006-01-02T15:04:05.999999999Z07:00")
	default:
		return s.t.Format("2006-01-02T15:04:05.999999999")
	}
}

func (s ShootingTime) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ShootingTime) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
