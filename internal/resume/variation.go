package resume

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

// VariationInfo is the metadata returned by variation mutations.
type VariationInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Bio               string `json:"bio"`
	Theme             string `json:"theme"`
	Spacing           string `json:"spacing"`
	IsDefault         bool   `json:"is_default"`
	DefaultVisibility bool   `json:"default_visibility"`
}

func newVariationInfo(v database.Variation) VariationInfo {
	return VariationInfo{
		ID:                v.UUID,
		Name:              v.Name,
		Bio:               v.Bio,
		Theme:             v.Theme,
		Spacing:           v.Spacing,
		IsDefault:         v.IsDefault,
		DefaultVisibility: v.DefaultVisibility,
	}
}

// CreateVariation creates a new non-default variation that clones the
// source variation's visibility map. Jobs and bullets are shared, not
// copied; only the mask is duplicated.
func CreateVariation(ctx context.Context, db *gorm.DB, userUUID, sourceUUID, name string) (*VariationInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultVariationName
	}

	var created database.Variation
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}

		source, err := findVariation(tx, user.ID, sourceUUID)
		if err != nil {
			return err
		}

		created = database.Variation{
			UUID:              uuid.NewString(),
			UserID:            user.ID,
			Name:              name,
			Bio:               source.Bio,
			Theme:             source.Theme,
			Spacing:           source.Spacing,
			IsDefault:         false,
			DefaultVisibility: source.DefaultVisibility,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create variation: %w", err)
		}

		var rows []database.BulletVisibility
		if err := tx.Where("variation_id = ?", source.ID).Find(&rows).Error; err != nil {
			return fmt.Errorf("load source visibility: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		clones := make([]database.BulletVisibility, 0, len(rows))
		for _, row := range rows {
			clones = append(clones, database.BulletVisibility{
				VariationID:   created.ID,
				BulletPointID: row.BulletPointID,
				IsVisible:     row.IsVisible,
			})
		}
		if err := tx.Create(&clones).Error; err != nil {
			return fmt.Errorf("clone visibility: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	info := newVariationInfo(created)
	return &info, nil
}

// DeleteVariation removes a variation together with its visibility rows.
// The user's last remaining variation cannot be deleted. If the deleted
// variation held the default flag, the oldest survivor inherits it so the
// account never ends up defaultless.
func DeleteVariation(ctx context.Context, db *gorm.DB, userUUID, variationUUID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}

		variation, err := findVariation(tx, user.ID, variationUUID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&database.Variation{}).
			Where("user_id = ?", user.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("count variations: %w", err)
		}
		if count <= 1 {
			return ErrLastVariation
		}

		if err := tx.Where("variation_id = ?", variation.ID).
			Delete(&database.BulletVisibility{}).Error; err != nil {
			return fmt.Errorf("delete visibility rows: %w", err)
		}
		if err := tx.Unscoped().Delete(&database.Variation{}, variation.ID).Error; err != nil {
			return fmt.Errorf("delete variation: %w", err)
		}

		if variation.IsDefault {
			var survivor database.Variation
			if err := tx.Where("user_id = ?", user.ID).
				Order("created_at asc, id asc").
				First(&survivor).Error; err != nil {
				return fmt.Errorf("find surviving variation: %w", err)
			}
			if err := tx.Model(&database.Variation{}).
				Where("id = ?", survivor.ID).
				Update("is_default", true).Error; err != nil {
				return fmt.Errorf("promote surviving variation: %w", err)
			}
		}
		return nil
	})
}

// RenameVariation updates a variation's display name.
func RenameVariation(ctx context.Context, db *gorm.DB, userUUID, variationUUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("variation name is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}
		variation, err := findVariation(tx, user.ID, variationUUID)
		if err != nil {
			return err
		}
		if err := tx.Model(&database.Variation{}).
			Where("id = ?", variation.ID).
			Update("name", name).Error; err != nil {
			return fmt.Errorf("rename variation: %w", err)
		}
		return nil
	})
}

// SetDefaultVariation marks one variation as the user's default and demotes
// every other. The operation is idempotent.
func SetDefaultVariation(ctx context.Context, db *gorm.DB, userUUID, variationUUID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userUUID)
		if err != nil {
			return err
		}
		variation, err := findVariation(tx, user.ID, variationUUID)
		if err != nil {
			return err
		}

		if err := tx.Model(&database.Variation{}).
			Where("user_id = ? AND id <> ?", user.ID, variation.ID).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("demote variations: %w", err)
		}
		if err := tx.Model(&database.Variation{}).
			Where("id = ?", variation.ID).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("promote variation: %w", err)
		}
		return nil
	})
}

func findVariation(tx *gorm.DB, userID uint, variationUUID string) (*database.Variation, error) {
	var variation database.Variation
	if err := tx.Where("uuid = ? AND user_id = ?", variationUUID, userID).
		First(&variation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariationNotFound
		}
		return nil, fmt.Errorf("find variation: %w", err)
	}
	return &variation, nil
}
