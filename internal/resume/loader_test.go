package resume

import (
	"context"
	"errors"
	"testing"

	"cvforge/internal/database"
)

func TestLoadUnknownUser(t *testing.T) {
	db := newTestDB(t)
	if _, err := Load(context.Background(), db, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestLoadSynthesizesDefaults(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)

	agg, err := Load(context.Background(), db, user.UUID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(agg.Variations) != 1 {
		t.Fatalf("variations = %d, want 1", len(agg.Variations))
	}
	for _, v := range agg.Variations {
		if v.Name != DefaultVariationName {
			t.Errorf("variation name = %q, want %q", v.Name, DefaultVariationName)
		}
		if !v.IsDefault {
			t.Errorf("synthesized variation is not default")
		}
		if !v.DefaultVisibility {
			t.Errorf("synthesized variation hides bullets by default")
		}
		if v.Theme != DefaultTheme || v.Spacing != DefaultSpacing {
			t.Errorf("theme/spacing = %q/%q", v.Theme, v.Spacing)
		}
	}

	if len(agg.Sections) != 1 || agg.Sections[0].Name != StarterSectionName {
		t.Fatalf("sections = %+v, want one %q section", agg.Sections, StarterSectionName)
	}

	// A second load must not mint more defaults.
	again, err := Load(context.Background(), db, user.UUID)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(again.Variations) != 1 || len(again.Sections) != 1 {
		t.Fatalf("second load synthesized extra defaults: %d variations, %d sections",
			len(again.Variations), len(again.Sections))
	}
}

func TestLoadVisibilityFallsBackToVariationDefault(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)
	agg := seedResume(t, db, user.UUID)

	var defaultUUID string
	for vu := range agg.Variations {
		defaultUUID = vu
	}

	shown := agg.BulletPoints[0].ID
	hiddenByDefault := "opt-in"

	// One opt-out variation: everything hidden unless explicitly shown.
	agg.Variations[hiddenByDefault] = VariationPayload{
		Name:              "Short",
		DefaultVisibility: false,
		BulletVisibility: []VisibilityEntry{
			{BulletPointID: shown, IsVisible: true},
		},
	}
	if err := Save(context.Background(), db, user.UUID, agg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(context.Background(), db, user.UUID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	optIn, ok := loaded.Variations[hiddenByDefault]
	if !ok {
		t.Fatalf("opt-in variation missing: %v", loaded.Variations)
	}
	if len(optIn.BulletVisibility) != len(loaded.BulletPoints) {
		t.Fatalf("visibility covers %d bullets, want %d",
			len(optIn.BulletVisibility), len(loaded.BulletPoints))
	}
	for _, entry := range optIn.BulletVisibility {
		want := entry.BulletPointID == shown
		if entry.IsVisible != want {
			t.Errorf("bullet %s visible = %v, want %v", entry.BulletPointID, entry.IsVisible, want)
		}
	}

	// The opt-out polarity: default variation shows everything it has no
	// explicit row for.
	defVar := loaded.Variations[defaultUUID]
	for _, entry := range defVar.BulletVisibility {
		if !entry.IsVisible {
			t.Errorf("default variation hides bullet %s", entry.BulletPointID)
		}
	}
}

func TestLoadRewritesInternalKeys(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db)
	agg := seedResume(t, db, user.UUID)

	var sections []database.Section
	if err := db.Find(&sections).Error; err != nil {
		t.Fatalf("find sections: %v", err)
	}
	if agg.Jobs[0].SectionID != sections[0].UUID {
		t.Errorf("job references %q, want opaque section id %q", agg.Jobs[0].SectionID, sections[0].UUID)
	}
}
