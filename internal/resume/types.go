package resume

import "strings"

// Server-assigned defaults for synthesized entities.
const (
	DefaultVariationName = "Default"
	DefaultTheme         = "default"
	DefaultSpacing       = "normal"
	StarterSectionName   = "Experience"
)

// Aggregate is the full nested snapshot of a user's resume data exchanged
// as one JSON document. All cross-references use client-visible opaque ids.
type Aggregate struct {
	FullName     string                      `json:"full_name"`
	ContactInfo  string                      `json:"contact_info"`
	Sections     []SectionPayload            `json:"sections"`
	Jobs         []JobPayload                `json:"jobs"`
	BulletPoints []BulletPayload             `json:"bullet_points"`
	Variations   map[string]VariationPayload `json:"variations"`
}

// SectionPayload is a named grouping with a dense order position.
type SectionPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// JobPayload belongs to exactly one section via SectionID.
type JobPayload struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Order     int    `json:"order"`
}

// BulletPayload belongs to exactly one job via JobID.
type BulletPayload struct {
	ID      string `json:"id"`
	JobID   string `json:"job_id"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// VariationPayload carries a variation's metadata and its visibility mask.
// BulletVisibility covers every bullet the user owns on load; on save,
// absent pairs fall back to DefaultVisibility.
type VariationPayload struct {
	Name              string            `json:"name"`
	Bio               string            `json:"bio"`
	Theme             string            `json:"theme"`
	Spacing           string            `json:"spacing"`
	IsDefault         bool              `json:"is_default"`
	DefaultVisibility bool              `json:"default_visibility"`
	BulletVisibility  []VisibilityEntry `json:"bullet_visibility"`
}

// VisibilityEntry flags one bullet's visibility within one variation.
type VisibilityEntry struct {
	BulletPointID string `json:"bullet_point_id"`
	IsVisible     bool   `json:"is_visible"`
}

// HasContent reports whether the aggregate carries any user-entered text.
// Purely structural payloads (empty sections, default-named variations with
// blank bios) do not count. Login-time merging is gated on this predicate,
// so it must stay in sync with what clients consider "content".
func HasContent(a *Aggregate) bool {
	if a == nil {
		return false
	}
	if strings.TrimSpace(a.FullName) != "" || strings.TrimSpace(a.ContactInfo) != "" {
		return true
	}
	for _, v := range a.Variations {
		if strings.TrimSpace(v.Bio) != "" {
			return true
		}
	}
	for _, s := range a.Sections {
		if strings.TrimSpace(s.Name) != "" {
			return true
		}
	}
	for _, j := range a.Jobs {
		if strings.TrimSpace(j.Title) != "" || strings.TrimSpace(j.Company) != "" {
			return true
		}
	}
	for _, b := range a.BulletPoints {
		if strings.TrimSpace(b.Content) != "" {
			return true
		}
	}
	return false
}
