package resume

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

// Load assembles the user's full resume aggregate. Sections, jobs and
// bullets come back pre-sorted by order position at every nesting level,
// and every variation's visibility list covers every bullet the user owns.
//
// First load is not side-effect-free: a user with no variations gets one
// default variation and one starter section persisted before the snapshot
// is returned.
func Load(ctx context.Context, db *gorm.DB, userUUID string) (*Aggregate, error) {
	var agg *Aggregate
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}

		if err := ensureDefaults(tx, user.ID); err != nil {
			return err
		}

		agg, err = loadAggregate(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func findUser(tx *gorm.DB, userUUID string) (*database.User, error) {
	var user database.User
	if err := tx.Where("uuid = ?", userUUID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// ensureDefaults synthesizes the default variation and starter section for
// a user who has none yet.
func ensureDefaults(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&database.Variation{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("count variations: %w", err)
	}
	if count > 0 {
		return nil
	}

	variation := database.Variation{
		UUID:              uuid.NewString(),
		UserID:            userID,
		Name:              DefaultVariationName,
		Theme:             DefaultTheme,
		Spacing:           DefaultSpacing,
		IsDefault:         true,
		DefaultVisibility: true,
	}
	if err := tx.Create(&variation).Error; err != nil {
		return fmt.Errorf("create default variation: %w", err)
	}

	var sections int64
	if err := tx.Model(&database.Section{}).Where("user_id = ?", userID).Count(&sections).Error; err != nil {
		return fmt.Errorf("count sections: %w", err)
	}
	if sections == 0 {
		starter := database.Section{
			UUID:       uuid.NewString(),
			UserID:     userID,
			Name:       StarterSectionName,
			OrderIndex: 0,
		}
		if err := tx.Create(&starter).Error; err != nil {
			return fmt.Errorf("create starter section: %w", err)
		}
	}
	return nil
}

func loadAggregate(tx *gorm.DB, user *database.User) (*Aggregate, error) {
	var sections []database.Section
	if err := tx.Where("user_id = ?", user.ID).
		Order("order_index asc, id asc").
		Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	var jobs []database.Job
	if err := tx.Where("user_id = ?", user.ID).
		Order("order_index asc, id asc").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	var bullets []database.BulletPoint
	if err := tx.Model(&database.BulletPoint{}).
		Joins("JOIN jobs ON jobs.id = bullet_points.job_id").
		Where("jobs.user_id = ? AND jobs.deleted_at IS NULL", user.ID).
		Order("bullet_points.order_index asc, bullet_points.id asc").
		Find(&bullets).Error; err != nil {
		return nil, fmt.Errorf("load bullet points: %w", err)
	}

	var variations []database.Variation
	if err := tx.Where("user_id = ?", user.ID).
		Order("created_at asc, id asc").
		Find(&variations).Error; err != nil {
		return nil, fmt.Errorf("load variations: %w", err)
	}

	// Internal keys never leave the server: cross-references are rewritten
	// to opaque identifiers here.
	sectionUUIDs := make(map[uint]string, len(sections))
	agg := &Aggregate{
		FullName:     user.FullName,
		ContactInfo:  user.ContactInfo,
		Sections:     make([]SectionPayload, 0, len(sections)),
		Jobs:         make([]JobPayload, 0, len(jobs)),
		BulletPoints: make([]BulletPayload, 0, len(bullets)),
		Variations:   make(map[string]VariationPayload, len(variations)),
	}

	for _, s := range sections {
		sectionUUIDs[s.ID] = s.UUID
		agg.Sections = append(agg.Sections, SectionPayload{
			ID:    s.UUID,
			Name:  s.Name,
			Order: s.OrderIndex,
		})
	}

	jobUUIDs := make(map[uint]string, len(jobs))
	for _, j := range jobs {
		jobUUIDs[j.ID] = j.UUID
		agg.Jobs = append(agg.Jobs, JobPayload{
			ID:        j.UUID,
			SectionID: sectionUUIDs[j.SectionID],
			Title:     j.Title,
			Company:   j.Company,
			StartDate: j.StartDate,
			EndDate:   j.EndDate,
			Order:     j.OrderIndex,
		})
	}

	bulletUUIDs := make(map[uint]string, len(bullets))
	for _, b := range bullets {
		bulletUUIDs[b.ID] = b.UUID
		agg.BulletPoints = append(agg.BulletPoints, BulletPayload{
			ID:      b.UUID,
			JobID:   jobUUIDs[b.JobID],
			Content: b.Content,
			Order:   b.OrderIndex,
		})
	}

	visibility, err := loadVisibility(tx, variations)
	if err != nil {
		return nil, err
	}

	for _, v := range variations {
		entries := make([]VisibilityEntry, 0, len(bullets))
		rows := visibility[v.ID]
		for _, b := range bullets {
			visible := v.DefaultVisibility
			if explicit, ok := rows[b.ID]; ok {
				visible = explicit
			}
			entries = append(entries, VisibilityEntry{
				BulletPointID: b.UUID,
				IsVisible:     visible,
			})
		}
		agg.Variations[v.UUID] = VariationPayload{
			Name:              v.Name,
			Bio:               v.Bio,
			Theme:             v.Theme,
			Spacing:           v.Spacing,
			IsDefault:         v.IsDefault,
			DefaultVisibility: v.DefaultVisibility,
			BulletVisibility:  entries,
		}
	}

	return agg, nil
}

func loadVisibility(tx *gorm.DB, variations []database.Variation) (map[uint]map[uint]bool, error) {
	result := make(map[uint]map[uint]bool, len(variations))
	if len(variations) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(variations))
	for _, v := range variations {
		ids = append(ids, v.ID)
	}

	var rows []database.BulletVisibility
	if err := tx.Where("variation_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load visibility: %w", err)
	}

	for _, row := range rows {
		m, ok := result[row.VariationID]
		if !ok {
			m = make(map[uint]bool)
			result[row.VariationID] = m
		}
		m[row.BulletPointID] = row.IsVisible
	}
	return result, nil
}
