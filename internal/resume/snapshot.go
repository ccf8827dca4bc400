package resume

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// RenderSnapshot is one variation's printable view of the resume: bullets
// hidden in the variation are gone, jobs with nothing left to show are
// dropped, and so are sections without jobs. It is stored on the export job
// at enqueue time so later edits cannot change an in-flight export.
type RenderSnapshot struct {
	FullName    string          `json:"full_name"`
	ContactInfo string          `json:"contact_info"`
	Bio         string          `json:"bio"`
	Theme       string          `json:"theme"`
	Spacing     string          `json:"spacing"`
	Sections    []RenderSection `json:"sections"`
}

// RenderSection groups the printable jobs under one section heading.
type RenderSection struct {
	Name string      `json:"name"`
	Jobs []RenderJob `json:"jobs"`
}

// RenderJob carries one job's print fields and its visible bullets in order.
type RenderJob struct {
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Bullets   []string `json:"bullets"`
}

// BuildSnapshot assembles the render input for one of the user's variations.
func BuildSnapshot(ctx context.Context, db *gorm.DB, userUUID, variationUUID string) (*RenderSnapshot, error) {
	agg, err := Load(ctx, db, userUUID)
	if err != nil {
		return nil, err
	}

	vp, ok := agg.Variations[variationUUID]
	if !ok {
		return nil, ErrVariationNotFound
	}

	visible := make(map[string]bool, len(vp.BulletVisibility))
	for _, entry := range vp.BulletVisibility {
		visible[entry.BulletPointID] = entry.IsVisible
	}

	bulletsByJob := make(map[string][]string)
	for _, b := range agg.BulletPoints {
		if !visible[b.ID] || strings.TrimSpace(b.Content) == "" {
			continue
		}
		bulletsByJob[b.JobID] = append(bulletsByJob[b.JobID], b.Content)
	}

	jobsBySection := make(map[string][]RenderJob)
	for _, j := range agg.Jobs {
		bullets := bulletsByJob[j.ID]
		if strings.TrimSpace(j.Title) == "" || len(bullets) == 0 {
			continue
		}
		jobsBySection[j.SectionID] = append(jobsBySection[j.SectionID], RenderJob{
			Title:     j.Title,
			Company:   j.Company,
			StartDate: j.StartDate,
			EndDate:   j.EndDate,
			Bullets:   bullets,
		})
	}

	snapshot := &RenderSnapshot{
		FullName:    agg.FullName,
		ContactInfo: agg.ContactInfo,
		Bio:         vp.Bio,
		Theme:       vp.Theme,
		Spacing:     vp.Spacing,
	}
	for _, s := range agg.Sections {
		jobs := jobsBySection[s.ID]
		if len(jobs) == 0 {
			continue
		}
		snapshot.Sections = append(snapshot.Sections, RenderSection{
			Name: s.Name,
			Jobs: jobs,
		})
	}
	return snapshot, nil
}
