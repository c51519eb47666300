package dates

import "testing"

func strPtr(s string) *string { return &s }

func TestParseFallsBackToSecondLayout(t *testing.T) {
	us, invalid := Parse(strPtr("01/15/1980"), US, ISO)
	if invalid || us == nil || Format(us) != "1980-01-15" {
		t.Fatalf("expected 1980-01-15, got %v (invalid=%v)", us, invalid)
	}

	iso, invalid := Parse(strPtr("1980-01-15"), US, ISO)
	if invalid || iso == nil || !iso.Equal(*us) {
		t.Fatalf("expected ISO fallback to match, got %v (invalid=%v)", iso, invalid)
	}
}

func TestParseInvalidAndMissing(t *testing.T) {
	if got, invalid := Parse(strPtr("2023-13-45"), ISO); got != nil || !invalid {
		t.Fatalf("expected invalid date, got %v invalid=%v", got, invalid)
	}
	if got, invalid := Parse(nil, ISO); got != nil || invalid {
		t.Fatalf("nil input should be missing, not invalid")
	}
	if got, invalid := Parse(strPtr("  "), ISO); got != nil || invalid {
		t.Fatalf("blank input should be missing, not invalid")
	}
	if Format(nil) != "" {
		t.Fatal("expected empty format for nil date")
	}
}
