package resume

import (
	"fmt"

	"gorm.io/gorm"
)

// resolver maps client-visible opaque identifiers to internal numeric keys
// within one transaction. A miss means the entity is being created in this
// transaction (or the reference is stale); entities created mid-transaction
// are recorded so later lookups resolve them. All lookups are scoped to one
// user so foreign identifiers never resolve.
type resolver struct {
	tx     *gorm.DB
	userID uint

	sections   map[string]uint
	jobs       map[string]uint
	bullets    map[string]uint
	variations map[string]uint
}

func newResolver(tx *gorm.DB, userID uint) *resolver {
	return &resolver{
		tx:         tx,
		userID:     userID,
		sections:   make(map[string]uint),
		jobs:       make(map[string]uint),
		bullets:    make(map[string]uint),
		variations: make(map[string]uint),
	}
}

func pluckID(query *gorm.DB, column string) (uint, bool, error) {
	var ids []uint
	if err := query.Limit(1).Pluck(column, &ids).Error; err != nil {
		return 0, false, fmt.Errorf("resolve id: %w", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// sectionID resolves a section's opaque id to its internal key.
func (r *resolver) sectionID(uuid string) (uint, bool, error) {
	if id, ok := r.sections[uuid]; ok {
		return id, true, nil
	}
	id, ok, err := pluckID(r.tx.Table("sections").
		Where("uuid = ? AND user_id = ? AND deleted_at IS NULL", uuid, r.userID), "id")
	if err != nil || !ok {
		return 0, ok, err
	}
	r.sections[uuid] = id
	return id, true, nil
}

// jobID resolves a job's opaque id to its internal key.
func (r *resolver) jobID(uuid string) (uint, bool, error) {
	if id, ok := r.jobs[uuid]; ok {
		return id, true, nil
	}
	id, ok, err := pluckID(r.tx.Table("jobs").
		Where("uuid = ? AND user_id = ? AND deleted_at IS NULL", uuid, r.userID), "id")
	if err != nil || !ok {
		return 0, ok, err
	}
	r.jobs[uuid] = id
	return id, true, nil
}

// bulletID resolves a bullet point's opaque id, scoped to the user through
// its owning job.
func (r *resolver) bulletID(uuid string) (uint, bool, error) {
	if id, ok := r.bullets[uuid]; ok {
		return id, true, nil
	}
	id, ok, err := pluckID(r.tx.Table("bullet_points").
		Joins("JOIN jobs ON jobs.id = bullet_points.job_id").
		Where("bullet_points.uuid = ? AND jobs.user_id = ? AND bullet_points.deleted_at IS NULL", uuid, r.userID),
		"bullet_points.id")
	if err != nil || !ok {
		return 0, ok, err
	}
	r.bullets[uuid] = id
	return id, true, nil
}

// variationID resolves a variation's opaque id to its internal key.
func (r *resolver) variationID(uuid string) (uint, bool, error) {
	if id, ok := r.variations[uuid]; ok {
		return id, true, nil
	}
	id, ok, err := pluckID(r.tx.Table("resume_variations").
		Where("uuid = ? AND user_id = ? AND deleted_at IS NULL", uuid, r.userID), "id")
	if err != nil || !ok {
		return 0, ok, err
	}
	r.variations[uuid] = id
	return id, true, nil
}

// Registration for entities created inside the transaction, so later
// references in the same payload resolve without a query.
func (r *resolver) recordSection(uuid string, id uint)   { r.sections[uuid] = id }
func (r *resolver) recordJob(uuid string, id uint)       { r.jobs[uuid] = id }
func (r *resolver) recordBullet(uuid string, id uint)    { r.bullets[uuid] = id }
func (r *resolver) recordVariation(uuid string, id uint) { r.variations[uuid] = id }
