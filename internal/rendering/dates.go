package rendering

import (
	"regexp"
	"strconv"
	"strings"
)

var monthAbbr = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var (
	numericMonthRe = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/((?:19|20)\d{2})\b`)
	isoMonthRe     = regexp.MustCompile(`\b((?:19|20)\d{2})-(0[1-9]|1[0-2])(?:-(?:0[1-9]|[12]\d|3[01]))?\b`)
	namedMonthRe   = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?,?\s+((?:19|20)\d{2})\b`)
	rangeRe        = regexp.MustCompile(`(?i)((?:19|20)\d{2})\s*(?:[-–—]+|\bto\b|\buntil\b)\s*((?:[A-Z][a-z]{2} )?(?:19|20)\d{2}|present|current|now|today|ongoing)\b`)
)

// NormalizeDates rewrites month-year tokens as "Jan 2006" and date ranges
// as "Jan 2006 - Present". Full ISO dates drop their day.
func NormalizeDates(s string) string {
	s = numericMonthRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := numericMonthRe.FindStringSubmatch(m)
		n, _ := strconv.Atoi(parts[1])
		return monthAbbr[n-1] + " " + parts[2]
	})
	s = isoMonthRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := isoMonthRe.FindStringSubmatch(m)
		n, _ := strconv.Atoi(parts[2])
		return monthAbbr[n-1] + " " + parts[1]
	})
	s = namedMonthRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := namedMonthRe.FindStringSubmatch(m)
		return monthFromName(parts[1]) + " " + parts[2]
	})
	return rangeRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := rangeRe.FindStringSubmatch(m)
		end := parts[2]
		switch strings.ToLower(end) {
		case "present", "current", "now", "today", "ongoing":
			end = "Present"
		}
		return parts[1] + " - " + end
	})
}

func monthFromName(name string) string {
	prefix := strings.ToLower(name)[:3]
	for _, m := range monthAbbr {
		if strings.ToLower(m) == prefix {
			return m
		}
	}
	return name
}
