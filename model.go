package chartlog

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/chartlog/chartlog/date"
	"github.com/chartlog/chartlog/vdir"
	"github.com/shopspring/decimal"
)

// NewID returns a new opaque identifier: 32 lowercase hex characters.
func NewID() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// The reserved project always exists in every storage root and cannot
// be deleted.
const (
	DefaultProjectID   = "default"
	DefaultProjectName = "General"
)

// DefaultThemeName is the folder segment used for charts without a theme.
const DefaultThemeName = "Global"

// DefaultProject returns the reserved project.
func DefaultProject() Project {
	return Project{ID: DefaultProjectID, Name: DefaultProjectName, CreatedAt: time.Now().UTC()}
}

// Project groups charts and themes under a user-chosen display label.
// The name doubles as a folder segment after sanitization.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Theme is a sub-grouping owned by a project.
type Theme struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Direction of a trade.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Outcome of a trade.
type Outcome string

const (
	Win       Outcome = "win"
	Loss      Outcome = "loss"
	Breakeven Outcome = "breakeven"
	Pending   Outcome = "pending"
)

// Chart is one annotated chart screenshot with its trade metadata.
//
// ID and ImageFileName are assigned at creation and never regenerated,
// even if the metadata that fed the naming template changes later.
// The thumbnail is regenerable and deliberately never persisted: it
// would bloat the index document.
type Chart struct {
	ID            string `json:"id"`
	ImageFileName string `json:"imageFileName"`
	Thumbnail     string `json:"-"`

	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Session   string    `json:"session,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Setup     string    `json:"setup,omitempty"`

	Entry      *decimal.Decimal `json:"entry,omitempty"`
	Stop       *decimal.Decimal `json:"stop,omitempty"`
	Target     *decimal.Decimal `json:"target,omitempty"`
	RiskReward *decimal.Decimal `json:"riskReward,omitempty"`
	Outcome    Outcome          `json:"outcome,omitempty"`
	ProfitLoss *Money           `json:"profitLoss,omitempty"`

	Tags  []string `json:"tags,omitempty"`
	Notes string   `json:"notes,omitempty"`

	SecondaryImages []string `json:"secondaryImages,omitempty"`

	ProjectID string `json:"projectId"`
	ThemeID   string `json:"themeId,omitempty"`

	TradingDay date.Date `json:"tradingDay"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ComputeRiskReward derives the risk-reward ratio from entry, stop and
// target: |target-entry| / |entry-stop|, rounded to 2 decimals. It
// returns false when any price is missing or the risk is zero.
func (c *Chart) ComputeRiskReward() bool {
	if c.Entry == nil || c.Stop == nil || c.Target == nil {
		return false
	}
	risk := c.Entry.Sub(*c.Stop).Abs()
	if risk.IsZero() {
		return false
	}
	rr := c.Target.Sub(*c.Entry).Abs().Div(risk).Round(2)
	c.RiskReward = &rr
	return true
}

// AddTag appends a tag unless it is already present. Insertion order
// is preserved for display.
func (c *Chart) AddTag(tag string) {
	for _, t := range c.Tags {
		if t == tag {
			return
		}
	}
	c.Tags = append(c.Tags, tag)
}

// TimerSession is one stopped stopwatch run, attributed to a project
// and optionally a theme. Day is the derived calendar day of the start
// time, used for date-bucketed queries.
type TimerSession struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId"`
	ThemeID         string     `json:"themeId,omitempty"`
	Symbol          string     `json:"symbol,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds"`
	Day             date.Date  `json:"day"`
}

// NewTimerSession builds a session from a start and end instant,
// deriving the whole-second duration and the calendar day.
func NewTimerSession(projectID, themeID, symbol string, start, end time.Time) TimerSession {
	end = end.Round(0)
	return TimerSession{
		ID:              NewID(),
		ProjectID:       projectID,
		ThemeID:         themeID,
		Symbol:          symbol,
		StartedAt:       start,
		EndedAt:         &end,
		DurationSeconds: int64(end.Sub(start).Seconds()),
		Day:             date.Of(start),
	}
}

// AppConfig is the per-root vocabulary and naming configuration.
// There is exactly one per storage root.
type AppConfig struct {
	Symbols          []string `json:"symbols"`
	Timeframes       []string `json:"timeframes"`
	Sessions         []string `json:"sessions"`
	CommonTags       []string `json:"commonTags"`
	FileNameTemplate string   `json:"fileNameTemplate"`
	AccountCurrency  string   `json:"accountCurrency"`
}

// DefaultConfig returns the compiled-in configuration used for fresh
// roots and whenever config.json is absent or corrupt.
func DefaultConfig() AppConfig {
	return AppConfig{
		Symbols:          []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "BTCUSD"},
		Timeframes:       []string{"M1", "M5", "M15", "H1", "H4", "D1", "W1"},
		Sessions:         []string{"Asia", "London", "New York"},
		CommonTags:       []string{"breakout", "reversal", "trend", "news"},
		FileNameTemplate: DefaultFileNameTemplate,
		AccountCurrency:  "USD",
	}
}

// StorageFolder is one linked storage root. The handle is an opaque
// host resource and is never serialized into any synced document; the
// registry persists only its id, name and location.
type StorageFolder struct {
	ID          string
	Name        string
	Handle      *vdir.Root
	IsConnected bool
}
