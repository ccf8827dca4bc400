package resume

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB) *database.User {
	t.Helper()
	user := database.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

// seedResume persists one section, one job and two bullets through Save and
// returns the loaded aggregate so tests see server-assigned identifiers.
func seedResume(t *testing.T, db *gorm.DB, userUUID string) *Aggregate {
	t.Helper()
	ctx := context.Background()

	sectionID := uuid.NewString()
	jobID := uuid.NewString()
	payload := &Aggregate{
		FullName:    "Ada Lovelace",
		ContactInfo: "ada@example.com",
		Sections: []SectionPayload{
			{ID: sectionID, Name: "Experience", Order: 0},
		},
		Jobs: []JobPayload{
			{ID: jobID, SectionID: sectionID, Title: "Engineer", Company: "Analytical Engines", StartDate: "1840", EndDate: "1852", Order: 0},
		},
		BulletPoints: []BulletPayload{
			{ID: uuid.NewString(), JobID: jobID, Content: "Wrote the first program", Order: 0},
			{ID: uuid.NewString(), JobID: jobID, Content: "Annotated the translation", Order: 1},
		},
	}
	if err := Save(ctx, db, userUUID, payload); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	agg, err := Load(ctx, db, userUUID)
	if err != nil {
		t.Fatalf("seed load: %v", err)
	}
	return agg
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
