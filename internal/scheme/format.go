package scheme

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber rounds x to decimals places and formats it German style:
// "." groups thousands, "," separates decimals.
func FormatNumber(x float64, decimals int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "-"
	}
	fixed := decimal.NewFromFloat(x).StringFixed(int32(decimals))

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// HoursAndMinutes splits minutes into whole hours and remaining whole minutes.
func HoursAndMinutes(totalMinutes float64) (hours, minutes int) {
	return int(math.Floor(totalMinutes / 60)), int(math.Floor(math.Mod(totalMinutes, 60)))
}

// HoursMinutes formats minutes as "1h 5m".
func HoursMinutes(totalMinutes float64) string {
	h, m := HoursAndMinutes(totalMinutes)
	return fmt.Sprintf("%dh %dm", h, m)
}
