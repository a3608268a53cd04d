package repository

import (
	"fmt"
	"strconv"
	"time"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// DateWindow returns the half-open interval [start, end) selected by a date
// of the form yyyy[mm[dd[hh[mm]]]]. The window spans one unit of the finest
// component given: a year for yyyy, a month for yyyymm, and so on down to a
// minute for yyyymmddhhmm. Both bounds are rendered in the catalog's
// dateTimeStart format.
func DateWindow(date string) (start, end string, err error) {
	switch len(date) {
	case 4, 6, 8, 10, 12:
	default:
		return "", "", fmt.Errorf("date %q: expected yyyy[mm[dd[hh[mm]]]]", date)
	}
	for _, c := range date {
		if c < '0' || c > '9' {
			return "", "", fmt.Errorf("date %q: not a number", date)
		}
	}

	parts := [5]int{0, 1, 1, 0, 0}
	parts[0] = atoi(date[0:4])
	for i, off := 1, 4; off < len(date); i, off = i+1, off+2 {
		parts[i] = atoi(date[off : off+2])
	}

	year, month, day, hour, minute := parts[0], parts[1], parts[2], parts[3], parts[4]
	if month < 1 || month > 12 || hour > 23 || minute > 59 {
		return "", "", fmt.Errorf("date %q: out of range", date)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day {
		return "", "", fmt.Errorf("date %q: out of range", date)
	}

	var next time.Time
	switch len(date) {
	case 4:
		next = t.AddDate(1, 0, 0)
	case 6:
		next = t.AddDate(0, 1, 0)
	case 8:
		next = t.AddDate(0, 0, 1)
	case 10:
		next = t.Add(time.Hour)
	default:
		next = t.Add(time.Minute)
	}
	return t.Format(sqliteTimeLayout), next.Format(sqliteTimeLayout), nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
