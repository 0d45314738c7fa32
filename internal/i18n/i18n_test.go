package i18n

import (
	"context"
	"testing"
)

func TestTranslations(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx := WithLocalizer(context.Background(), NewLocalizer("en"))
	if got := T(ctx, "error.not_found"); got != "Not found." {
		t.Errorf("T en = %q", got)
	}

	ruCtx := WithLocalizer(context.Background(), NewLocalizer("ru"))
	if got := T(ruCtx, "error.not_found"); got != "Не найдено." {
		t.Errorf("T ru = %q", got)
	}

	// Missing IDs fall back to the ID itself.
	if got := T(ctx, "error.nonexistent"); got != "error.nonexistent" {
		t.Errorf("missing ID = %q", got)
	}

	// Context without a localizer falls back to English.
	if got := T(context.Background(), "error.not_found"); got != "Not found." {
		t.Errorf("fallback = %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := WithLocalizer(context.Background(), NewLocalizer("en"))
	if got := Td(ctx, "syllabus.imported", map[string]any{"Count": 7}); got != "Imported 7 topics." {
		t.Errorf("Td = %q", got)
	}
}
