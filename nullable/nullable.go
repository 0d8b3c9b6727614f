// Package nullable converts between plain Go values and the null/sqlboiler
// column types found on persistence models. The helpers are meant to be called
// from mapping functions registered with package mapping.
package nullable

import (
	"time"

	"github.com/Station-Manager/errors"
	"github.com/aarondl/null/v8"
)

const (
	ErrMsgEmptyString   = "String parameter cannot be empty."
	ErrMsgBadDateFormat = "Bad date format, expected YYYYMMDD or YYYY-MM-DD"
)

// String converts s to a null.String. The empty string is null.
func String(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

// FromString returns the string held by s, or "" when s is null.
func FromString(s null.String) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// Bool converts b to a valid null.Bool.
func Bool(b bool) null.Bool { return null.BoolFrom(b) }

// FromBool returns the bool held by b, or false when b is null.
func FromBool(b null.Bool) bool {
	if !b.Valid {
		return false
	}
	return b.Bool
}

// Int64 converts v to a valid null.Int64.
func Int64(v int64) null.Int64 { return null.Int64From(v) }

// FromInt64 returns the value held by v, or 0 when v is null.
func FromInt64(v null.Int64) int64 {
	if !v.Valid {
		return 0
	}
	return v.Int64
}

// Time converts t to a null.Time. The zero time is null.
func Time(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

// FromTime returns the time held by t, or the zero time when t is null.
func FromTime(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// Date parses s in YYYYMMDD or YYYY-MM-DD format. The empty string is null.
func Date(s string) (null.Time, error) {
	const op errors.Op = "nullable.Date"
	var (
		t   time.Time
		err error
	)
	switch len(s) {
	case 0:
		return null.Time{}, nil
	case 8:
		t, err = time.Parse("20060102", s)
	case 10:
		if s[4] != '-' || s[7] != '-' {
			return null.Time{}, errors.New(op).Msg(ErrMsgBadDateFormat)
		}
		t, err = time.Parse("2006-01-02", s)
	default:
		return null.Time{}, errors.New(op).Msg(ErrMsgBadDateFormat)
	}
	if err != nil {
		return null.Time{}, errors.New(op).Err(err).Msg(ErrMsgBadDateFormat)
	}
	return null.TimeFrom(t), nil
}

// FormatDate renders t as YYYY-MM-DD, or "" when t is null.
func FormatDate(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format("2006-01-02")
}

// ToString accepts a string or a null.String and returns the string value.
// A null null.String yields "". Empty plain strings and other types are errors.
func ToString(src any) (string, error) {
	const op errors.Op = "nullable.ToString"
	switch v := src.(type) {
	case null.String:
		return FromString(v), nil
	case string:
		if v == "" {
			return "", errors.New(op).Msg(ErrMsgEmptyString)
		}
		return v, nil
	default:
		return "", errors.New(op).Errorf("Given parameter not a string or null.String, got %T", src)
	}
}
