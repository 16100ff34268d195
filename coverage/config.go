// CLAUDE:SUMMARY Configuration struct and defaults for the coverage service: DB path, backfill window, badge label, chart size.
package coverage

// Config holds the coverage service configuration.
type Config struct {
	DBPath string `json:"db_path" yaml:"db_path"`

	// BackfillLimit caps the base-branch snapshots appended to a trend.
	// Default: 10
	BackfillLimit int `json:"backfill_limit" yaml:"backfill_limit"`

	// BadgeLabel is the left-hand text of coverage badges. Default: "coverage"
	BadgeLabel string `json:"badge_label" yaml:"badge_label"`

	ChartWidth  int `json:"chart_width" yaml:"chart_width"`
	ChartHeight int `json:"chart_height" yaml:"chart_height"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "covgate.db"
	}
	if c.BackfillLimit <= 0 {
		c.BackfillLimit = 10
	}
	if c.BadgeLabel == "" {
		c.BadgeLabel = "coverage"
	}
	if c.ChartWidth <= 0 {
		c.ChartWidth = 500
	}
	if c.ChartHeight <= 0 {
		c.ChartHeight = 200
	}
}
