package resume

import "testing"

func TestNormalizeOrderDensifiesAndKeepsTies(t *testing.T) {
	sections := []*SectionPayload{
		{ID: "a", Order: 10},
		{ID: "b", Order: 3},
		{ID: "c", Order: 3},
		{ID: "d", Order: -1},
	}
	NormalizeOrder(sections)

	want := map[string]int{"d": 0, "b": 1, "c": 2, "a": 3}
	for _, s := range sections {
		if s.Order != want[s.ID] {
			t.Errorf("section %s: order = %d, want %d", s.ID, s.Order, want[s.ID])
		}
	}
}

func TestNormalizeAggregateScopesSiblings(t *testing.T) {
	agg := &Aggregate{
		Sections: []SectionPayload{
			{ID: "s1", Order: 5},
			{ID: "s2", Order: 2},
		},
		Jobs: []JobPayload{
			{ID: "j1", SectionID: "s1", Order: 7},
			{ID: "j2", SectionID: "s2", Order: 9},
			{ID: "j3", SectionID: "s1", Order: 1},
		},
		BulletPoints: []BulletPayload{
			{ID: "b1", JobID: "j1", Order: 4},
			{ID: "b2", JobID: "j1", Order: 2},
			{ID: "b3", JobID: "j2", Order: 100},
		},
	}
	NormalizeAggregate(agg)

	orders := map[string]int{}
	for _, s := range agg.Sections {
		orders[s.ID] = s.Order
	}
	for _, j := range agg.Jobs {
		orders[j.ID] = j.Order
	}
	for _, b := range agg.BulletPoints {
		orders[b.ID] = b.Order
	}

	want := map[string]int{
		"s1": 1, "s2": 0,
		// jobs are ranked within their own section
		"j1": 1, "j3": 0, "j2": 0,
		// bullets are ranked within their own job
		"b1": 1, "b2": 0, "b3": 0,
	}
	for id, w := range want {
		if orders[id] != w {
			t.Errorf("%s: order = %d, want %d", id, orders[id], w)
		}
	}

	// Slice positions stay put; only the order values are rewritten.
	if agg.Sections[0].ID != "s1" || agg.Sections[1].ID != "s2" {
		t.Errorf("section slice order changed: %v", agg.Sections)
	}
}

func TestNormalizeAggregateNil(t *testing.T) {
	NormalizeAggregate(nil)
}
