package providers

import (
	"fmt"
	"strconv"
	"strings"
)

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// money renders a dollar amount with thousands separators, no cents.
func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := strconv.FormatInt(int64(v+0.5), 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pct(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}
