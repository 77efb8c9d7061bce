package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var academicYearRe = regexp.MustCompile(`^\s*(\d{4})\s*-\s*(\d{4})\s*$`)

// AcademicYear is one housing cycle, written "YYYY-YYYY".
type AcademicYear struct {
	Start int
	End   int
}

// YearBoundary is the calendar day on which an academic year ends.
type YearBoundary struct {
	Month time.Month
	Day   int
}

// DefaultYearBoundary ends every academic year on 30 June.
var DefaultYearBoundary = YearBoundary{Month: time.June, Day: 30}

// ParseAcademicYear parses a "YYYY-YYYY" string. The end year must be after
// the start year.
func ParseAcademicYear(raw string) (AcademicYear, error) {
	m := academicYearRe.FindStringSubmatch(raw)
	if m == nil {
		return AcademicYear{}, fmt.Errorf("invalid academic year %q: expected YYYY-YYYY", raw)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end <= start {
		return AcademicYear{}, fmt.Errorf("invalid academic year %q: end year must follow start year", raw)
	}
	return AcademicYear{Start: start, End: end}, nil
}

// AcademicYearFromDates derives the academic year of a stay from its start and
// end dates. This is the single definition used for reservations, room history
// and pass validity. A stay ending in its start year is treated as ending the
// following year.
func AcademicYearFromDates(start, end time.Time) AcademicYear {
	y := AcademicYear{Start: start.Year(), End: end.Year()}
	if y.End <= y.Start {
		y.End = y.Start + 1
	}
	return y
}

// String formats the year as "YYYY-YYYY".
func (y AcademicYear) String() string {
	return fmt.Sprintf("%04d-%04d", y.Start, y.End)
}

// Previous is the academic year one cycle earlier.
func (y AcademicYear) Previous() AcademicYear {
	return AcademicYear{Start: y.Start - 1, End: y.End - 1}
}

// EndsOn is the last day of the academic year, at midnight UTC.
func (y AcademicYear) EndsOn(b YearBoundary) time.Time {
	return time.Date(y.End, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
}

// StartsOn is the day after the previous academic year ended.
func (y AcademicYear) StartsOn(b YearBoundary) time.Time {
	return y.Previous().EndsOn(b).AddDate(0, 0, 1)
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
