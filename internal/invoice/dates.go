package invoice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// weekdays is indexed by time.Weekday, Sunday first
var weekdays = [7]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// looseParser accepts the formats jinzhu/now knows plus the day-first and
// textual forms shop staff actually type.
var looseParser = &now.Config{
	WeekStartDay: time.Sunday,
	TimeFormats: append(append([]string{}, now.TimeFormats...),
		"2006/01/02",
		"2006/1/2",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"Mon Jan 02 2006",
		time.RFC1123,
		time.RFC1123Z,
	),
}

// LocalizeDate renders a date-like value as "<Weekday> YYYY-MM-DD" with
// Spanish weekday names. Accepted values are time.Time, *time.Time and
// strings. It never fails: values it cannot make sense of come back as
// they were (strings) or empty (anything else).
func LocalizeDate(value interface{}) string {
	var ymd string
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		ymd = v.Format("2006-01-02")
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		ymd = v.Format("2006-01-02")
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return ""
		}
		var ok bool
		if ymd, ok = dateFromString(s); !ok {
			return s
		}
	default:
		return ""
	}
	return withWeekday(ymd)
}

// dateFromString extracts a YYYY-MM-DD candidate. The second result is
// false when s is too short to guess at and should be passed through.
func dateFromString(s string) (string, bool) {
	if m := isoDateRe.FindString(s); m != "" {
		return m, true
	}
	if t, err := looseParser.Parse(s); err == nil {
		return t.Format("2006-01-02"), true
	}
	if len(s) >= 10 {
		return s[:10], true
	}
	return s, false
}

// withWeekday prefixes a Y-M-D string with its weekday. Out-of-range days
// roll over the way time.Date normalizes them. Anything that is not three
// numeric parts is returned untouched.
func withWeekday(ymd string) string {
	parts := strings.Split(ymd, "-")
	if len(parts) != 3 {
		return ymd
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return ymd
		}
		n[i] = v
	}
	d := time.Date(n[0], time.Month(n[1]), n[2], 12, 0, 0, 0, time.UTC)
	return weekdays[d.Weekday()] + " " + ymd
}
