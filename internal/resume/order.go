package resume

import "sort"

// Orderable is satisfied by anything carrying an integer order position.
type Orderable interface {
	OrderKey() int
	SetOrderKey(int)
}

func (s *SectionPayload) OrderKey() int     { return s.Order }
func (s *SectionPayload) SetOrderKey(v int) { s.Order = v }
func (j *JobPayload) OrderKey() int         { return j.Order }
func (j *JobPayload) SetOrderKey(v int)     { j.Order = v }
func (b *BulletPayload) OrderKey() int      { return b.Order }
func (b *BulletPayload) SetOrderKey(v int)  { b.Order = v }

// NormalizeOrder reassigns each item's order field to its 0-based rank.
// Items are stably sorted by their prior order value, so ties keep their
// relative input order. Every item in the scope is rewritten, not just the
// moved one.
func NormalizeOrder[T Orderable](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderKey() < items[j].OrderKey()
	})
	for i, item := range items {
		item.SetOrderKey(i)
	}
}

// NormalizeAggregate densifies order fields within every sibling scope:
// sections per user, jobs per section, bullets per job. Order values are
// rewritten in place; slice positions are left untouched.
func NormalizeAggregate(a *Aggregate) {
	if a == nil {
		return
	}

	sections := make([]*SectionPayload, len(a.Sections))
	for i := range a.Sections {
		sections[i] = &a.Sections[i]
	}
	NormalizeOrder(sections)

	jobsBySection := make(map[string][]*JobPayload)
	for i := range a.Jobs {
		j := &a.Jobs[i]
		jobsBySection[j.SectionID] = append(jobsBySection[j.SectionID], j)
	}
	for _, group := range jobsBySection {
		NormalizeOrder(group)
	}

	bulletsByJob := make(map[string][]*BulletPayload)
	for i := range a.BulletPoints {
		b := &a.BulletPoints[i]
		bulletsByJob[b.JobID] = append(bulletsByJob[b.JobID], b)
	}
	for _, group := range bulletsByJob {
		NormalizeOrder(group)
	}
}
