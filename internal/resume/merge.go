package resume

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

// MergeDraft folds an anonymous, client-only draft into a freshly
// authenticated user's persisted data. Every draft variation becomes a
// brand-new variation row; none of the user's existing variations are
// touched.
//
// The draft is self-contained, so the full section/job/bullet subtree is
// re-created once per draft variation even though the live schema shares
// those rows across variations. Merging two draft variations that shared
// jobs therefore produces duplicate job rows; that mirrors the draft's
// shape and is intentional, not deduplicated.
//
// Drafts with no user-entered text (see HasContent) are ignored entirely.
// The whole merge runs in one transaction; the caller decides how a merge
// failure relates to the login that triggered it.
func MergeDraft(ctx context.Context, db *gorm.DB, userID uint, draft *Aggregate) error {
	if !HasContent(draft) {
		return nil
	}
	NormalizeAggregate(draft)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mergePersonalInfo(tx, userID, draft); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&database.Variation{}).
			Where("user_id = ?", userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("count variations: %w", err)
		}

		for i, draftUUID := range sortedVariationIDs(draft.Variations) {
			vp := draft.Variations[draftUUID]
			// The very first variation a user ever gets is the default;
			// merged variations only claim the flag on an empty account.
			makeDefault := existing == 0 && i == 0
			if err := mergeVariation(tx, userID, vp, draft, makeDefault); err != nil {
				return err
			}
		}
		return nil
	})
}

// mergePersonalInfo applies the draft's name/contact, but only where the
// draft supplies a non-blank value. Blank draft fields never clobber
// existing data.
func mergePersonalInfo(tx *gorm.DB, userID uint, draft *Aggregate) error {
	updates := map[string]any{}
	if v := strings.TrimSpace(draft.FullName); v != "" {
		updates["full_name"] = v
	}
	if v := strings.TrimSpace(draft.ContactInfo); v != "" {
		updates["contact_info"] = v
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&database.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("merge personal info: %w", err)
	}
	return nil
}

// mergeVariation creates one new variation for the user and re-creates the
// draft's entire structural tree underneath it, then applies the draft's
// visibility entries against the newly created bullets.
func mergeVariation(tx *gorm.DB, userID uint, vp VariationPayload, draft *Aggregate, makeDefault bool) error {
	name := strings.TrimSpace(vp.Name)
	if name == "" {
		name = DefaultVariationName
	}
	theme := vp.Theme
	if theme == "" {
		theme = DefaultTheme
	}
	spacing := vp.Spacing
	if spacing == "" {
		spacing = DefaultSpacing
	}

	variation := database.Variation{
		UUID:              uuid.NewString(),
		UserID:            userID,
		Name:              name,
		Bio:               vp.Bio,
		Theme:             theme,
		Spacing:           spacing,
		IsDefault:         makeDefault,
		DefaultVisibility: vp.DefaultVisibility,
	}
	if err := tx.Create(&variation).Error; err != nil {
		return fmt.Errorf("create merged variation: %w", err)
	}

	// Draft identifiers are only meaningful inside the draft; every
	// re-created row gets a fresh opaque id.
	sectionIDs := make(map[string]uint, len(draft.Sections))
	for _, s := range draft.Sections {
		row := database.Section{
			UUID:       uuid.NewString(),
			UserID:     userID,
			Name:       s.Name,
			OrderIndex: s.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("merge section: %w", err)
		}
		sectionIDs[s.ID] = row.ID
	}

	jobIDs := make(map[string]uint, len(draft.Jobs))
	for _, j := range draft.Jobs {
		sectionID, ok := sectionIDs[j.SectionID]
		if !ok {
			continue
		}
		row := database.Job{
			UUID:       uuid.NewString(),
			UserID:     userID,
			SectionID:  sectionID,
			Title:      j.Title,
			Company:    j.Company,
			StartDate:  j.StartDate,
			EndDate:    j.EndDate,
			OrderIndex: j.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("merge job: %w", err)
		}
		jobIDs[j.ID] = row.ID
	}

	bulletIDs := make(map[string]uint, len(draft.BulletPoints))
	for _, b := range draft.BulletPoints {
		jobID, ok := jobIDs[b.JobID]
		if !ok {
			continue
		}
		row := database.BulletPoint{
			UUID:       uuid.NewString(),
			JobID:      jobID,
			Content:    b.Content,
			OrderIndex: b.Order,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("merge bullet point: %w", err)
		}
		bulletIDs[b.ID] = row.ID
	}

	seen := make(map[uint]bool)
	rows := make([]database.BulletVisibility, 0, len(vp.BulletVisibility))
	for _, entry := range vp.BulletVisibility {
		bulletID, ok := bulletIDs[entry.BulletPointID]
		if !ok || seen[bulletID] {
			continue
		}
		seen[bulletID] = true
		rows = append(rows, database.BulletVisibility{
			VariationID:   variation.ID,
			BulletPointID: bulletID,
			IsVisible:     entry.IsVisible,
		})
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("merge visibility: %w", err)
		}
	}
	return nil
}
