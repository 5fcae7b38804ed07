package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// Automated tag names.
const (
	TagAsianSession   = "Asian Session"
	TagLondonSession  = "London Session"
	TagNewYorkSession = "New York Session"
	TagOutOfHours     = "Out-of-hours"
	TagScalp          = "Scalp"
	TagDayTrade       = "Day-Trade"
	TagSwingTrade     = "Swing-Trade"
	TagLeftMoney      = "Left Money on the Table"
	TagPerfectExit    = "Perfect Exit"
	TagLetLoserRun    = "Let Loser Run"
)

var automatedTags = map[string]struct{}{
	TagAsianSession: {}, TagLondonSession: {}, TagNewYorkSession: {}, TagOutOfHours: {},
	TagScalp: {}, TagDayTrade: {}, TagSwingTrade: {},
	TagLeftMoney: {}, TagPerfectExit: {}, TagLetLoserRun: {},
}

// IsAutomatedTag reports whether tag is one the Tagger produces.
func IsAutomatedTag(tag string) bool {
	_, ok := automatedTags[tag]
	return ok
}

// marketSession is a half-open UTC hour range [startHour, endHour).
type marketSession struct {
	tag       string
	startHour int
	endHour   int
}

// Sessions overlap on purpose; a trade can receive zero to three session tags.
var marketSessions = []marketSession{
	{TagAsianSession, 0, 9},
	{TagLondonSession, 8, 17},
	{TagNewYorkSession, 13, 22},
}

var (
	scalpLimit    = 5 * time.Minute
	dayTradeLimit = 60 * time.Minute

	leftMoneyBelow   = decimal.RequireFromString("0.60")
	perfectExitFrom  = decimal.RequireFromString("0.95")
	letLoserRunAbove = decimal.RequireFromString("1.5")
)

// SessionWindow is a named time-of-day range in the trader's local time.
// End before Start means the window wraps past midnight.
type SessionWindow struct {
	Name  string
	Start time.Duration // offset from local midnight
	End   time.Duration
}

// ParseSessionWindow builds a window from "HH:MM" strings.
func ParseSessionWindow(name, start, end string) (SessionWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return SessionWindow{}, fmt.Errorf("session %q start: %w", name, err)
	}
	e, err := parseClock(end)
	if err != nil {
		return SessionWindow{}, fmt.Errorf("session %q end: %w", name, err)
	}
	return SessionWindow{Name: name, Start: s, End: e}, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Contains reports whether the time-of-day offset falls inside the window.
// The start is inclusive and the end exclusive; Start == End covers the whole day.
func (w SessionWindow) Contains(tod time.Duration) bool {
	if w.Start < w.End {
		return tod >= w.Start && tod < w.End
	}
	return tod >= w.Start || tod < w.End
}

// PreferredSessions is the user's configured trading hours.
type PreferredSessions struct {
	Location *time.Location
	Windows  []SessionWindow
}

// Allows reports whether t falls inside any configured window.
func (p PreferredSessions) Allows(t time.Time) bool {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	tod := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	for _, w := range p.Windows {
		if w.Contains(tod) {
			return true
		}
	}
	return false
}

// Tagger derives objective tags for a trade. A nil or empty Preferred
// disables the out-of-hours rule.
type Tagger struct {
	Preferred *PreferredSessions
}

// Tags returns the automated tags for a trade in a fixed category order:
// sessions, preferred hours, duration, efficiency.
func (tg Tagger) Tags(trade models.Trade, bars []models.PriceBar) []string {
	tags := SessionTags(trade.EntryTime)

	if tg.Preferred != nil && len(tg.Preferred.Windows) > 0 && !tg.Preferred.Allows(trade.EntryTime) {
		tags = append(tags, TagOutOfHours)
	}

	tags = append(tags, DurationTag(trade.Duration()))

	if len(bars) > 0 {
		tags = append(tags, EfficiencyTags(trade, CalculateExcursion(trade, bars))...)
	}
	return tags
}

// SessionTags returns every market session containing the entry hour (UTC).
func SessionTags(entry time.Time) []string {
	hour := entry.UTC().Hour()
	var tags []string
	for _, s := range marketSessions {
		if hour >= s.startHour && hour < s.endHour {
			tags = append(tags, s.tag)
		}
	}
	return tags
}

// DurationTag classifies the holding time.
func DurationTag(d time.Duration) string {
	switch {
	case d < scalpLimit:
		return TagScalp
	case d < dayTradeLimit:
		return TagDayTrade
	default:
		return TagSwingTrade
	}
}

// EfficiencyTags applies the exit-efficiency and pain-ratio rules.
// "Left Money on the Table" and "Let Loser Run" compare the unrounded
// quotient so 0.5999 and 1.501 still cross their thresholds. "Perfect Exit"
// compares the two-decimal efficiency, so 0.945 counts as 0.95.
func EfficiencyTags(trade models.Trade, exc Excursion) []string {
	var tags []string
	switch {
	case trade.PnL.IsPositive() && exc.MFE.IsPositive():
		eff := trade.PnL.Div(exc.MFE)
		if eff.LessThan(leftMoneyBelow) {
			tags = append(tags, TagLeftMoney)
		}
		if ExitEfficiency(trade.PnL, exc).GreaterThanOrEqual(perfectExitFrom) {
			tags = append(tags, TagPerfectExit)
		}
	case trade.PnL.IsNegative():
		pain := exc.MAE.Div(trade.PnL.Abs())
		if pain.GreaterThan(letLoserRunAbove) {
			tags = append(tags, TagLetLoserRun)
		}
	}
	return tags
}

// ExitEfficiency is pnl/mfe rounded to two places, zero unless pnl and mfe are positive.
func ExitEfficiency(pnl decimal.Decimal, exc Excursion) decimal.Decimal {
	if !pnl.IsPositive() || !exc.MFE.IsPositive() {
		return decimal.Zero
	}
	return pnl.DivRound(exc.MFE, MoneyScale)
}

// PainRatio is mae/|pnl| rounded to two places, zero unless pnl is negative.
func PainRatio(pnl decimal.Decimal, exc Excursion) decimal.Decimal {
	if !pnl.IsNegative() {
		return decimal.Zero
	}
	return exc.MAE.DivRound(pnl.Abs(), MoneyScale)
}
