package models

import (
	"fmt"
	"strings"
)

// DatePreset names a relative creation-date window
type DatePreset string

const (
	DatePresetAll         DatePreset = "all"
	DatePresetToday       DatePreset = "today"
	DatePresetYesterday   DatePreset = "yesterday"
	DatePresetThisWeek    DatePreset = "thisWeek"
	DatePresetLastWeek    DatePreset = "lastWeek"
	DatePresetThisMonth   DatePreset = "thisMonth"
	DatePresetLastMonth   DatePreset = "lastMonth"
	DatePresetLast3Months DatePreset = "last3Months"
	DatePresetLast6Months DatePreset = "last6Months"
)

// DatePresets lists every supported preset
var DatePresets = []DatePreset{
	DatePresetAll,
	DatePresetToday,
	DatePresetYesterday,
	DatePresetThisWeek,
	DatePresetLastWeek,
	DatePresetThisMonth,
	DatePresetLastMonth,
	DatePresetLast3Months,
	DatePresetLast6Months,
}

// IsValid checks if the preset is known. The empty preset means all.
func (p DatePreset) IsValid() bool {
	if p == "" {
		return true
	}
	for _, known := range DatePresets {
		if p == known {
			return true
		}
	}
	return false
}

// TagMode selects how a tag selection is matched against an item's tags
type TagMode string

const (
	// TagModeAll requires every selected tag to be present.
	TagModeAll TagMode = "ALL"
	// TagModeEquals requires the single selected tag to be a member.
	TagModeEquals TagMode = "EQUALS"
)

// AllValue is the sentinel the dashboards send for "no constraint".
const AllValue = "all"

// FilterCriteria is the composable filter applied by every list view.
// Absent fields, and fields set to "all", match everything.
type FilterCriteria struct {
	SearchText      string     `json:"searchText"`
	CampaignID      string     `json:"campaignId,omitempty"`
	BrandID         string     `json:"brandId,omitempty"`
	DateRangePreset DatePreset `json:"dateRangePreset"`
	TagSelection    []string   `json:"tagSelection"`
	TagMode         TagMode    `json:"tagMode"`
	StatusSelection string     `json:"statusSelection,omitempty"`
	Segment         string     `json:"segment,omitempty"`
}

// Validate reports malformed criteria
func (c *FilterCriteria) Validate() error {
	if !c.DateRangePreset.IsValid() {
		return fmt.Errorf("invalid dateRangePreset: %q", c.DateRangePreset)
	}
	switch c.TagMode {
	case "", TagModeAll:
	case TagModeEquals:
		if len(c.selectedTags()) > 1 {
			return fmt.Errorf("tagMode EQUALS accepts a single tag, got %d", len(c.selectedTags()))
		}
	default:
		return fmt.Errorf("invalid tagMode: %q (must be ALL or EQUALS)", c.TagMode)
	}
	if c.Segment != "" && c.Segment != AllValue && !Segment(c.Segment).IsValid() {
		return fmt.Errorf("invalid segment: %q", c.Segment)
	}
	return nil
}

// WithDefaultTagMode returns a copy whose empty tag mode is set to mode
func (c FilterCriteria) WithDefaultTagMode(mode TagMode) FilterCriteria {
	if c.TagMode == "" {
		c.TagMode = mode
	}
	return c
}

// SelectedTags returns the non-blank, non-"all" tag ids of the selection
func (c *FilterCriteria) SelectedTags() []string {
	return c.selectedTags()
}

func (c *FilterCriteria) selectedTags() []string {
	tags := make([]string, 0, len(c.TagSelection))
	for _, t := range c.TagSelection {
		t = strings.TrimSpace(t)
		if t == "" || t == AllValue {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// IsUnset reports whether a categorical criterion places no constraint
func IsUnset(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || value == AllValue
}
