package coverage

import (
	"math"
	"strconv"
)

// Percent returns covered over total units as a percentage rounded to two
// decimals. A zero total yields ErrDegenerateMetric.
func Percent(c Counts) (float64, error) {
	total := c.Total()
	if total == 0 {
		return 0, ErrDegenerateMetric
	}
	ratio := float64(c.Covered()) / float64(total)
	return math.Round(ratio*10000) / 100, nil
}

// FormatPercent renders p with the fewest digits that represent it
// exactly: 95, 100, 0.14, 83.33.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// snapshotPercent is Percent for stored records, where a degenerate row
// counts as 0%.
func snapshotPercent(s *Snapshot) float64 {
	p, err := Percent(s.Counts)
	if err != nil {
		return 0
	}
	return p
}
