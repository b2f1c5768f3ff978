package service

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"crmtriage/internal/models"
)

// Fields selects the filterable fields of an item type. A nil selector means
// the item type has no such field and the matching criterion is ignored.
type Fields[T any] struct {
	Text      func(T) []string
	Campaigns func(T) []string
	Brand     func(T) string
	Status    func(T) string
	Segment   func(T) string
	CreatedAt func(T) time.Time
	Tags      func(T) models.TagSet
}

// FilterEngine derives the visible subset of a collection from a
// FilterCriteria. It never mutates its input and never fails: malformed or
// unmatched criteria yield an empty result.
type FilterEngine struct {
	now func() time.Time
	loc *time.Location
}

// NewFilterEngine creates an engine evaluating date presets in loc against
// the clock now. Nil arguments default to time.Now and time.Local.
func NewFilterEngine(now func() time.Time, loc *time.Location) *FilterEngine {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &FilterEngine{now: now, loc: loc}
}

// Apply returns the items matching every criterion, in input order
func Apply[T any](e *FilterEngine, items []T, criteria models.FilterCriteria, fields Fields[T]) []T {
	match := compile(e, criteria, fields)

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if match(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Matches reports whether a single item passes the criteria
func Matches[T any](e *FilterEngine, item T, criteria models.FilterCriteria, fields Fields[T]) bool {
	return compile(e, criteria, fields)(item)
}

// compile resolves the criteria once (including "now") and returns the
// conjunction of the applicable predicates.
func compile[T any](e *FilterEngine, c models.FilterCriteria, f Fields[T]) func(T) bool {
	var preds []func(T) bool
	never := func(T) bool { return false }

	if text := strings.TrimSpace(c.SearchText); text != "" && f.Text != nil {
		// A Caser is stateful, so each compiled matcher gets its own.
		folder := cases.Fold()
		needle := folder.String(text)
		preds = append(preds, func(item T) bool {
			for _, field := range f.Text(item) {
				if strings.Contains(folder.String(field), needle) {
					return true
				}
			}
			return false
		})
	}

	if !models.IsUnset(c.CampaignID) && f.Campaigns != nil {
		want := strings.TrimSpace(c.CampaignID)
		preds = append(preds, func(item T) bool {
			for _, id := range f.Campaigns(item) {
				if id == want {
					return true
				}
			}
			return false
		})
	}

	if !models.IsUnset(c.BrandID) && f.Brand != nil {
		preds = append(preds, equals(f.Brand, strings.TrimSpace(c.BrandID)))
	}

	if !models.IsUnset(c.StatusSelection) && f.Status != nil {
		preds = append(preds, equals(f.Status, strings.TrimSpace(c.StatusSelection)))
	}

	if !models.IsUnset(c.Segment) && f.Segment != nil {
		preds = append(preds, equals(f.Segment, strings.TrimSpace(c.Segment)))
	}

	if f.CreatedAt != nil {
		window, ok := e.window(c.DateRangePreset)
		if !ok {
			return never
		}
		if !window.unbounded {
			preds = append(preds, func(item T) bool {
				return window.contains(f.CreatedAt(item), e.loc)
			})
		}
	}

	if selected := c.SelectedTags(); len(selected) > 0 && f.Tags != nil {
		switch c.TagMode {
		case "", models.TagModeAll:
			preds = append(preds, func(item T) bool {
				return f.Tags(item).ContainsAll(selected)
			})
		case models.TagModeEquals:
			if len(selected) != 1 {
				return never
			}
			tag := selected[0]
			preds = append(preds, func(item T) bool {
				return f.Tags(item).Has(tag)
			})
		default:
			return never
		}
	}

	return func(item T) bool {
		for _, p := range preds {
			if !p(item) {
				return false
			}
		}
		return true
	}
}

func equals[T any](field func(T) string, want string) func(T) bool {
	return func(item T) bool {
		return field(item) == want
	}
}

// dateWindow is an inclusive range of calendar days
type dateWindow struct {
	from, to  time.Time
	unbounded bool
}

func (w dateWindow) contains(t time.Time, loc *time.Location) bool {
	if t.IsZero() {
		return false
	}
	day := startOfDay(t, loc)
	return !day.Before(w.from) && !day.After(w.to)
}

// window resolves preset against the current time. Weeks start on Sunday.
func (e *FilterEngine) window(preset models.DatePreset) (dateWindow, bool) {
	today := startOfDay(e.now(), e.loc)

	switch preset {
	case "", models.DatePresetAll:
		return dateWindow{unbounded: true}, true
	case models.DatePresetToday:
		return dateWindow{from: today, to: today}, true
	case models.DatePresetYesterday:
		y := today.AddDate(0, 0, -1)
		return dateWindow{from: y, to: y}, true
	case models.DatePresetThisWeek:
		return dateWindow{from: weekStart(today), to: today}, true
	case models.DatePresetLastWeek:
		ws := weekStart(today)
		return dateWindow{from: ws.AddDate(0, 0, -7), to: ws.AddDate(0, 0, -1)}, true
	case models.DatePresetThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, e.loc)
		return dateWindow{from: first, to: first.AddDate(0, 1, -1)}, true
	case models.DatePresetLastMonth:
		first := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, e.loc)
		return dateWindow{from: first, to: first.AddDate(0, 1, -1)}, true
	case models.DatePresetLast3Months:
		return dateWindow{from: addMonthsClamped(today, -3), to: today}, true
	case models.DatePresetLast6Months:
		return dateWindow{from: addMonthsClamped(today, -6), to: today}, true
	}
	return dateWindow{}, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func weekStart(day time.Time) time.Time {
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// addMonthsClamped moves day by months, clamping to the last day of the
// target month instead of overflowing (May 31 - 3 months = Feb 28/29).
func addMonthsClamped(day time.Time, months int) time.Time {
	first := time.Date(day.Year(), day.Month()+time.Month(months), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1).Day()
	d := day.Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, day.Location())
}

// MessageFields selects the filterable fields of a message view
var MessageFields = Fields[models.MessageView]{
	Text: func(m models.MessageView) []string {
		return []string{m.CustomerName, m.Body}
	},
	Campaigns: func(m models.MessageView) []string {
		return []string{m.CampaignID}
	},
	Brand:     func(m models.MessageView) string { return m.BrandID },
	Status:    func(m models.MessageView) string { return m.Status },
	CreatedAt: func(m models.MessageView) time.Time { return m.CreatedAt },
	Tags:      func(m models.MessageView) models.TagSet { return m.Tags },
}

// CustomerFields selects the filterable fields of a customer
var CustomerFields = Fields[models.Customer]{
	Text: func(c models.Customer) []string {
		return []string{c.Name, c.Email, c.Phone}
	},
	Campaigns: func(c models.Customer) []string { return c.CampaignIDs() },
	Status:    func(c models.Customer) string { return string(c.Status) },
	Segment:   func(c models.Customer) string { return string(c.Segment) },
	CreatedAt: func(c models.Customer) time.Time { return c.CreatedAt },
	Tags:      func(c models.Customer) models.TagSet { return c.Tags },
}
