package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crmtriage/internal/models"
)

// 2025-05-18 is a Sunday
var fixedNow = time.Date(2025, time.May, 18, 15, 0, 0, 0, time.UTC)

func newTestEngine() *FilterEngine {
	return NewFilterEngine(func() time.Time { return fixedNow }, time.UTC)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func view(id string, created time.Time, tags ...string) models.MessageView {
	return models.MessageView{Message: models.Message{
		ID:        id,
		BrandID:   "acme",
		Status:    "new",
		Body:      "body of " + id,
		CreatedAt: created,
		Tags:      models.NewTagSet(tags...),
	}}
}

func ids(views []models.MessageView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestFilterEngine_DatePresets(t *testing.T) {
	items := []models.MessageView{
		view("today", day(2025, time.May, 18)),
		view("yesterday", day(2025, time.May, 17)),
		view("lastweek-start", day(2025, time.May, 11)),
		view("before-lastweek", day(2025, time.May, 10)),
		view("month-start", day(2025, time.May, 1)),
		view("april", day(2025, time.April, 30)),
		view("april-first", day(2025, time.April, 1)),
		view("march", day(2025, time.March, 31)),
		view("feb-18", day(2025, time.February, 18)),
		view("feb-17", day(2025, time.February, 17)),
		view("nov-18", day(2024, time.November, 18)),
		view("nov-17", day(2024, time.November, 17)),
	}

	testCases := []struct {
		preset models.DatePreset
		want   []string
	}{
		{models.DatePresetToday, []string{"today"}},
		{models.DatePresetYesterday, []string{"yesterday"}},
		{models.DatePresetThisWeek, []string{"today"}},
		{models.DatePresetLastWeek, []string{"yesterday", "lastweek-start"}},
		{models.DatePresetThisMonth, []string{"today", "yesterday", "lastweek-start", "before-lastweek", "month-start"}},
		{models.DatePresetLastMonth, []string{"april", "april-first"}},
		{models.DatePresetLast3Months, []string{"today", "yesterday", "lastweek-start", "before-lastweek", "month-start", "april", "april-first", "march", "feb-18"}},
		{models.DatePresetLast6Months, []string{"today", "yesterday", "lastweek-start", "before-lastweek", "month-start", "april", "april-first", "march", "feb-18", "feb-17", "nov-18"}},
	}

	engine := newTestEngine()
	for _, tc := range testCases {
		t.Run(string(tc.preset), func(t *testing.T) {
			got := Apply(engine, items, models.FilterCriteria{DateRangePreset: tc.preset}, MessageFields)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestFilterEngine_AllPresetKeepsEverything(t *testing.T) {
	items := []models.MessageView{
		view("a", day(2020, time.January, 1)),
		view("zero", time.Time{}),
	}

	for _, preset := range []models.DatePreset{"", models.DatePresetAll} {
		got := Apply(newTestEngine(), items, models.FilterCriteria{DateRangePreset: preset}, MessageFields)
		assert.Equal(t, []string{"a", "zero"}, ids(got))
	}
}

func TestFilterEngine_UnknownPresetMatchesNothing(t *testing.T) {
	items := []models.MessageView{view("a", fixedNow)}

	got := Apply(newTestEngine(), items, models.FilterCriteria{DateRangePreset: "nextYear"}, MessageFields)
	assert.Empty(t, got)
}

func TestFilterEngine_LastMonthClampsShortMonths(t *testing.T) {
	engine := NewFilterEngine(func() time.Time { return time.Date(2025, time.May, 31, 12, 0, 0, 0, time.UTC) }, time.UTC)
	items := []models.MessageView{
		view("feb-28", day(2025, time.February, 28)),
		view("feb-27", day(2025, time.February, 27)),
	}

	got := Apply(engine, items, models.FilterCriteria{DateRangePreset: models.DatePresetLast3Months}, MessageFields)
	assert.Equal(t, []string{"feb-28"}, ids(got))
}

func TestFilterEngine_DayBoundariesUseLocation(t *testing.T) {
	istanbul := time.FixedZone("TRT", 3*60*60)
	engine := NewFilterEngine(func() time.Time { return fixedNow }, istanbul)

	// 22:30 UTC on May 17 is already May 18 in Istanbul
	items := []models.MessageView{view("late", time.Date(2025, time.May, 17, 22, 30, 0, 0, time.UTC))}

	got := Apply(engine, items, models.FilterCriteria{DateRangePreset: models.DatePresetToday}, MessageFields)
	assert.Equal(t, []string{"late"}, ids(got))
}

func TestFilterEngine_SearchIsCaseInsensitive(t *testing.T) {
	a := view("a", fixedNow)
	a.Body = "ÇÖZÜM bekliyorum"
	b := view("b", fixedNow)
	b.Body = "Kampanya hakkında bilgi"
	b.CustomerName = "Ayşe Yılmaz"
	items := []models.MessageView{a, b}
	engine := newTestEngine()

	assert.Equal(t, []string{"a"}, ids(Apply(engine, items, models.FilterCriteria{SearchText: "çözüm"}, MessageFields)))
	assert.Equal(t, []string{"b"}, ids(Apply(engine, items, models.FilterCriteria{SearchText: "KAMPANYA"}, MessageFields)))
	assert.Equal(t, []string{"b"}, ids(Apply(engine, items, models.FilterCriteria{SearchText: "ayşe"}, MessageFields)))
	assert.Equal(t, []string{"a", "b"}, ids(Apply(engine, items, models.FilterCriteria{SearchText: "   "}, MessageFields)))
}

func TestFilterEngine_TagModes(t *testing.T) {
	items := []models.MessageView{
		view("both", fixedNow, "vip", "complaint"),
		view("vip", fixedNow, "vip"),
		view("none", fixedNow),
	}
	engine := newTestEngine()

	testCases := []struct {
		name     string
		criteria models.FilterCriteria
		want     []string
	}{
		{"equals single", models.FilterCriteria{TagMode: models.TagModeEquals, TagSelection: []string{"vip"}}, []string{"both", "vip"}},
		{"all single", models.FilterCriteria{TagMode: models.TagModeAll, TagSelection: []string{"vip"}}, []string{"both", "vip"}},
		{"all pair", models.FilterCriteria{TagMode: models.TagModeAll, TagSelection: []string{"vip", "complaint"}}, []string{"both"}},
		{"equals pair is malformed", models.FilterCriteria{TagMode: models.TagModeEquals, TagSelection: []string{"vip", "complaint"}}, []string{}},
		{"unknown mode", models.FilterCriteria{TagMode: "ANY", TagSelection: []string{"vip"}}, []string{}},
		{"all sentinel", models.FilterCriteria{TagMode: models.TagModeEquals, TagSelection: []string{"all"}}, []string{"both", "vip", "none"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Apply(engine, items, tc.criteria, MessageFields)))
		})
	}
}

func TestFilterEngine_CategoricalCriteria(t *testing.T) {
	a := view("a", fixedNow)
	a.CampaignID = "c1"
	a.Status = "new"
	b := view("b", fixedNow)
	b.CampaignID = "c2"
	b.BrandID = "globex"
	b.Status = "resolved"
	items := []models.MessageView{a, b}
	engine := newTestEngine()

	assert.Equal(t, []string{"b"}, ids(Apply(engine, items, models.FilterCriteria{CampaignID: "c2"}, MessageFields)))
	assert.Equal(t, []string{"a"}, ids(Apply(engine, items, models.FilterCriteria{BrandID: "acme"}, MessageFields)))
	assert.Equal(t, []string{"b"}, ids(Apply(engine, items, models.FilterCriteria{StatusSelection: "resolved"}, MessageFields)))
	assert.Equal(t, []string{"a", "b"}, ids(Apply(engine, items, models.FilterCriteria{CampaignID: "all", BrandID: "all", StatusSelection: "all"}, MessageFields)))
	// Messages have no segment, so the criterion is ignored
	assert.Equal(t, []string{"a", "b"}, ids(Apply(engine, items, models.FilterCriteria{Segment: "Premium"}, MessageFields)))
}

func TestFilterEngine_IdempotentAndStable(t *testing.T) {
	items := []models.MessageView{
		view("c", day(2025, time.May, 16), "vip"),
		view("a", day(2025, time.May, 18), "vip"),
		view("b", day(2025, time.May, 12)),
		view("d", day(2025, time.May, 17), "vip"),
	}
	criteria := models.FilterCriteria{DateRangePreset: models.DatePresetThisMonth, TagSelection: []string{"vip"}, TagMode: models.TagModeEquals}
	engine := newTestEngine()

	once := Apply(engine, items, criteria, MessageFields)
	twice := Apply(engine, once, criteria, MessageFields)

	assert.Equal(t, []string{"c", "a", "d"}, ids(once))
	assert.Equal(t, ids(once), ids(twice))
	assert.Len(t, items, 4)
}

func TestFilterEngine_CustomerFields(t *testing.T) {
	customers := []models.Customer{
		{ID: "1", Name: "Ayşe", Email: "ayse@example.com", Segment: models.SegmentPremium, Status: models.CustomerStatusSold, CreatedAt: fixedNow,
			CampaignHistory: []models.CampaignInteraction{{CampaignID: "c1"}, {CampaignID: "c2"}}},
		{ID: "2", Name: "Mehmet", Phone: "+905551112233", Segment: models.SegmentBasic, Status: models.CustomerStatusInterested, CreatedAt: fixedNow},
	}
	engine := newTestEngine()

	customerIDs := func(cs []models.Customer) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1"}, customerIDs(Apply(engine, customers, models.FilterCriteria{CampaignID: "c2"}, CustomerFields)))
	assert.Equal(t, []string{"2"}, customerIDs(Apply(engine, customers, models.FilterCriteria{Segment: "Basic"}, CustomerFields)))
	assert.Equal(t, []string{"1"}, customerIDs(Apply(engine, customers, models.FilterCriteria{StatusSelection: "Sold"}, CustomerFields)))
	assert.Equal(t, []string{"2"}, customerIDs(Apply(engine, customers, models.FilterCriteria{SearchText: "555111"}, CustomerFields)))
	assert.Equal(t, []string{"1"}, customerIDs(Apply(engine, customers, models.FilterCriteria{SearchText: "EXAMPLE.COM"}, CustomerFields)))
}

func TestMatches(t *testing.T) {
	item := view("a", fixedNow, "vip")

	assert.True(t, Matches(newTestEngine(), item, models.FilterCriteria{TagSelection: []string{"vip"}}, MessageFields))
	assert.False(t, Matches(newTestEngine(), item, models.FilterCriteria{DateRangePreset: models.DatePresetYesterday}, MessageFields))
}
