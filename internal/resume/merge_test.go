package resume

import (
	"context"
	"testing"

	"cvforge/internal/database"
)

func draftWithContent() *Aggregate {
	return &Aggregate{
		FullName: "Grace Hopper",
		Sections: []SectionPayload{
			{ID: "draft-section", Name: "Experience", Order: 0},
		},
		Jobs: []JobPayload{
			{ID: "draft-job", SectionID: "draft-section", Title: "Rear Admiral", Company: "US Navy", Order: 0},
		},
		BulletPoints: []BulletPayload{
			{ID: "draft-bullet", JobID: "draft-job", Content: "Invented the compiler", Order: 0},
		},
		Variations: map[string]VariationPayload{
			"draft-var": {
				Name:              "My Draft",
				Bio:               "Computing pioneer",
				DefaultVisibility: true,
				BulletVisibility: []VisibilityEntry{
					{BulletPointID: "draft-bullet", IsVisible: true},
				},
			},
		},
	}
}

func TestMergeDraftEmptyIsNoOp(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)

	empty := &Aggregate{
		Sections: []SectionPayload{{ID: "s", Name: "   ", Order: 0}},
		Variations: map[string]VariationPayload{
			"v": {Name: "Default"},
		},
	}
	if err := MergeDraft(context.Background(), db, user.ID, empty); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if n := countRows(t, db, &database.Variation{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("empty draft created %d variations", n)
	}
	if n := countRows(t, db, &database.Section{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("empty draft created %d sections", n)
	}
}

func TestMergeDraftNil(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)
	if err := MergeDraft(context.Background(), db, user.ID, nil); err != nil {
		t.Fatalf("merge nil: %v", err)
	}
}

func TestMergeDraftIntoEmptyAccount(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)

	if err := MergeDraft(context.Background(), db, user.ID, draftWithContent()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	agg, err := Load(context.Background(), db, user.UUID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if agg.FullName != "Grace Hopper" {
		t.Errorf("full name = %q", agg.FullName)
	}
	// Exactly the merged variation; Load must not synthesize a second one.
	if len(agg.Variations) != 1 {
		t.Fatalf("variations = %d, want 1", len(agg.Variations))
	}
	for _, v := range agg.Variations {
		if v.Name != "My Draft" || v.Bio != "Computing pioneer" {
			t.Errorf("variation = %+v", v)
		}
		if !v.IsDefault {
			t.Errorf("first merged variation must become the default")
		}
	}
	if len(agg.Jobs) != 1 || agg.Jobs[0].Title != "Rear Admiral" {
		t.Fatalf("jobs = %+v", agg.Jobs)
	}
	if len(agg.BulletPoints) != 1 || agg.BulletPoints[0].Content != "Invented the compiler" {
		t.Fatalf("bullets = %+v", agg.BulletPoints)
	}

	// Draft identifiers never leak into persisted data.
	if agg.Jobs[0].ID == "draft-job" {
		t.Errorf("draft job id persisted verbatim")
	}
}

func TestMergeDraftKeepsExistingVariations(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)
	existing := seedResume(t, db, user.UUID)

	if err := MergeDraft(context.Background(), db, user.ID, draftWithContent()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	agg, err := Load(context.Background(), db, user.UUID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(agg.Variations) != len(existing.Variations)+1 {
		t.Fatalf("variations = %d, want %d", len(agg.Variations), len(existing.Variations)+1)
	}
	var defaults int
	for _, v := range agg.Variations {
		if v.IsDefault {
			defaults++
			if v.Name == "My Draft" {
				t.Errorf("merged variation stole the default flag")
			}
		}
	}
	if defaults != 1 {
		t.Errorf("defaults = %d, want 1", defaults)
	}

	// Blank draft fields never clobber existing personal info, but the
	// draft's non-blank name replaces it.
	if agg.FullName != "Grace Hopper" {
		t.Errorf("full name = %q", agg.FullName)
	}
	if agg.ContactInfo != "ada@example.com" {
		t.Errorf("blank draft contact clobbered existing value: %q", agg.ContactInfo)
	}
}

func TestMergeDraftSkipsOrphanedRows(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)

	draft := draftWithContent()
	draft.Jobs = append(draft.Jobs, JobPayload{
		ID: "orphan-job", SectionID: "missing-section", Title: "Orphan", Order: 1,
	})
	draft.BulletPoints = append(draft.BulletPoints, BulletPayload{
		ID: "orphan-bullet", JobID: "missing-job", Content: "dangling", Order: 0,
	})

	if err := MergeDraft(context.Background(), db, user.ID, draft); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if n := countRows(t, db, &database.Job{}, "user_id = ? AND title = ?", user.ID, "Orphan"); n != 0 {
		t.Errorf("orphaned draft job persisted")
	}
	if n := countRows(t, db, &database.BulletPoint{}, "content = ?", "dangling"); n != 0 {
		t.Errorf("orphaned draft bullet persisted")
	}
}
