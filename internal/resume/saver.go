package resume

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

// Save replaces the user's entire resume graph with the incoming aggregate
// inside one transaction: personal info is updated unconditionally, persisted
// entities absent from the payload are pruned (visibility rows first, so the
// cascade never trips a foreign key), and everything else is upserted.
//
// A job whose declared section cannot be resolved is skipped silently, as is
// a bullet with an unresolvable job and a visibility entry for a bullet that
// did not survive. That keeps saves resilient to minor client/server drift at
// the cost of dropping the malformed entries.
func Save(ctx context.Context, db *gorm.DB, userUUID string, payload *Aggregate) error {
	if payload == nil {
		payload = &Aggregate{}
	}
	NormalizeAggregate(payload)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}

		if err := tx.Model(&database.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"full_name":    payload.FullName,
			"contact_info": payload.ContactInfo,
		}).Error; err != nil {
			return fmt.Errorf("update personal info: %w", err)
		}

		res := newResolver(tx, user.ID)

		if err := pruneMissing(tx, user.ID, payload); err != nil {
			return err
		}
		if err := upsertSections(tx, user.ID, res, payload.Sections); err != nil {
			return err
		}
		if err := upsertJobs(tx, user.ID, res, payload.Jobs); err != nil {
			return err
		}
		if err := upsertBullets(tx, res, payload.BulletPoints); err != nil {
			return err
		}
		if err := upsertVariations(tx, user.ID, res, payload.Variations); err != nil {
			return err
		}
		return rewriteVisibility(tx, res, payload.Variations)
	})
}

// pruneMissing deletes persisted sections/jobs/bullets whose opaque id no
// longer appears in the payload, together with everything they transitively
// own. Visibility rows for doomed bullets go first.
func pruneMissing(tx *gorm.DB, userID uint, payload *Aggregate) error {
	keepSections := make(map[string]bool, len(payload.Sections))
	for _, s := range payload.Sections {
		keepSections[s.ID] = true
	}
	keepJobs := make(map[string]bool, len(payload.Jobs))
	for _, j := range payload.Jobs {
		keepJobs[j.ID] = true
	}
	keepBullets := make(map[string]bool, len(payload.BulletPoints))
	for _, b := range payload.BulletPoints {
		keepBullets[b.ID] = true
	}

	var sections []database.Section
	if err := tx.Where("user_id = ?", userID).Find(&sections).Error; err != nil {
		return fmt.Errorf("load persisted sections: %w", err)
	}
	var jobs []database.Job
	if err := tx.Where("user_id = ?", userID).Find(&jobs).Error; err != nil {
		return fmt.Errorf("load persisted jobs: %w", err)
	}
	var bullets []database.BulletPoint
	if err := tx.Model(&database.BulletPoint{}).
		Joins("JOIN jobs ON jobs.id = bullet_points.job_id").
		Where("jobs.user_id = ? AND jobs.deleted_at IS NULL", userID).
		Find(&bullets).Error; err != nil {
		return fmt.Errorf("load persisted bullet points: %w", err)
	}

	doomedSections := make(map[uint]bool)
	var sectionIDs []uint
	for _, s := range sections {
		if !keepSections[s.UUID] {
			doomedSections[s.ID] = true
			sectionIDs = append(sectionIDs, s.ID)
		}
	}

	doomedJobs := make(map[uint]bool)
	var jobIDs []uint
	for _, j := range jobs {
		if !keepJobs[j.UUID] || doomedSections[j.SectionID] {
			doomedJobs[j.ID] = true
			jobIDs = append(jobIDs, j.ID)
		}
	}

	var bulletIDs []uint
	for _, b := range bullets {
		if !keepBullets[b.UUID] || doomedJobs[b.JobID] {
			bulletIDs = append(bulletIDs, b.ID)
		}
	}

	if len(bulletIDs) > 0 {
		if err := tx.Where("bullet_point_id IN ?", bulletIDs).
			Delete(&database.BulletVisibility{}).Error; err != nil {
			return fmt.Errorf("prune visibility rows: %w", err)
		}
		if err := tx.Unscoped().Where("id IN ?", bulletIDs).
			Delete(&database.BulletPoint{}).Error; err != nil {
			return fmt.Errorf("prune bullet points: %w", err)
		}
	}
	if len(jobIDs) > 0 {
		if err := tx.Unscoped().Where("id IN ?", jobIDs).
			Delete(&database.Job{}).Error; err != nil {
			return fmt.Errorf("prune jobs: %w", err)
		}
	}
	if len(sectionIDs) > 0 {
		if err := tx.Unscoped().Where("id IN ?", sectionIDs).
			Delete(&database.Section{}).Error; err != nil {
			return fmt.Errorf("prune sections: %w", err)
		}
	}
	return nil
}

func upsertSections(tx *gorm.DB, userID uint, res *resolver, sections []SectionPayload) error {
	for _, s := range sections {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		id, ok, err := res.sectionID(s.ID)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Model(&database.Section{}).Where("id = ?", id).Updates(map[string]any{
				"name":        s.Name,
				"order_index": s.Order,
			}).Error; err != nil {
				return fmt.Errorf("update section: %w", err)
			}
			continue
		}

		row := database.Section{
			UUID:       s.ID,
			UserID:     userID,
			Name:       s.Name,
			OrderIndex: s.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create section: %w", err)
		}
		res.recordSection(s.ID, row.ID)
	}
	return nil
}

func upsertJobs(tx *gorm.DB, userID uint, res *resolver, jobs []JobPayload) error {
	for _, j := range jobs {
		sectionID, ok, err := res.sectionID(j.SectionID)
		if err != nil {
			return err
		}
		if !ok {
			// Stale section reference from a client/server race; drop the
			// job rather than failing the whole save.
			continue
		}

		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		id, ok, err := res.jobID(j.ID)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Model(&database.Job{}).Where("id = ?", id).Updates(map[string]any{
				"section_id":  sectionID,
				"title":       j.Title,
				"company":     j.Company,
				"start_date":  j.StartDate,
				"end_date":    j.EndDate,
				"order_index": j.Order,
			}).Error; err != nil {
				return fmt.Errorf("update job: %w", err)
			}
			continue
		}

		row := database.Job{
			UUID:       j.ID,
			UserID:     userID,
			SectionID:  sectionID,
			Title:      j.Title,
			Company:    j.Company,
			StartDate:  j.StartDate,
			EndDate:    j.EndDate,
			OrderIndex: j.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		res.recordJob(j.ID, row.ID)
	}
	return nil
}

func upsertBullets(tx *gorm.DB, res *resolver, bullets []BulletPayload) error {
	for _, b := range bullets {
		jobID, ok, err := res.jobID(b.JobID)
		if err != nil {
			return err
		}
		if !ok {
			// Same skip policy as jobs with unresolvable sections.
			continue
		}

		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		id, ok, err := res.bulletID(b.ID)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Model(&database.BulletPoint{}).Where("id = ?", id).Updates(map[string]any{
				"job_id":      jobID,
				"content":     b.Content,
				"order_index": b.Order,
			}).Error; err != nil {
				return fmt.Errorf("update bullet point: %w", err)
			}
			continue
		}

		row := database.BulletPoint{
			UUID:       b.ID,
			JobID:      jobID,
			Content:    b.Content,
			OrderIndex: b.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create bullet point: %w", err)
		}
		res.recordBullet(b.ID, row.ID)
	}
	return nil
}

func upsertVariations(tx *gorm.DB, userID uint, res *resolver, variations map[string]VariationPayload) error {
	uuids := sortedVariationIDs(variations)

	var defaultUUID string
	for _, vu := range uuids {
		if variations[vu].IsDefault && defaultUUID == "" {
			defaultUUID = vu
		}
	}

	for _, vu := range uuids {
		v := variations[vu]
		name := strings.TrimSpace(v.Name)
		if name == "" {
			name = DefaultVariationName
		}
		theme := v.Theme
		if theme == "" {
			theme = DefaultTheme
		}
		spacing := v.Spacing
		if spacing == "" {
			spacing = DefaultSpacing
		}

		id, ok, err := res.variationID(vu)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Model(&database.Variation{}).Where("id = ?", id).Updates(map[string]any{
				"name":               name,
				"bio":                v.Bio,
				"theme":              theme,
				"spacing":            spacing,
				"is_default":         vu == defaultUUID,
				"default_visibility": v.DefaultVisibility,
			}).Error; err != nil {
				return fmt.Errorf("update variation: %w", err)
			}
			continue
		}

		row := database.Variation{
			UUID:              vu,
			UserID:            userID,
			Name:              name,
			Bio:               v.Bio,
			Theme:             theme,
			Spacing:           spacing,
			IsDefault:         vu == defaultUUID,
			DefaultVisibility: v.DefaultVisibility,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create variation: %w", err)
		}
		res.recordVariation(vu, row.ID)
	}

	// At most one default per user. Variations missing from the payload keep
	// their rows (saves never prune variations) but lose the flag when the
	// payload nominates another one.
	if defaultUUID != "" {
		if err := tx.Model(&database.Variation{}).
			Where("user_id = ? AND uuid <> ?", userID, defaultUUID).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("demote non-default variations: %w", err)
		}
	}
	return nil
}

// rewriteVisibility replaces every payload variation's visibility rows with
// the incoming list, dropping entries whose bullet did not survive the save.
func rewriteVisibility(tx *gorm.DB, res *resolver, variations map[string]VariationPayload) error {
	for _, vu := range sortedVariationIDs(variations) {
		variationID, ok, err := res.variationID(vu)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := tx.Where("variation_id = ?", variationID).
			Delete(&database.BulletVisibility{}).Error; err != nil {
			return fmt.Errorf("clear visibility: %w", err)
		}

		seen := make(map[uint]bool)
		rows := make([]database.BulletVisibility, 0, len(variations[vu].BulletVisibility))
		for _, entry := range variations[vu].BulletVisibility {
			bulletID, ok, err := res.bulletID(entry.BulletPointID)
			if err != nil {
				return err
			}
			if !ok || seen[bulletID] {
				continue
			}
			seen[bulletID] = true
			rows = append(rows, database.BulletVisibility{
				VariationID:   variationID,
				BulletPointID: bulletID,
				IsVisible:     entry.IsVisible,
			})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert visibility: %w", err)
			}
		}
	}
	return nil
}

func sortedVariationIDs(variations map[string]VariationPayload) []string {
	uuids := make([]string, 0, len(variations))
	for vu := range variations {
		uuids = append(uuids, vu)
	}
	sort.Strings(uuids)
	return uuids
}
