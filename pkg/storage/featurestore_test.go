package storage

import (
	"testing"
	"time"
)

func TestFeatureStoreKey(t *testing.T) {
	store := NewFeatureStore(nil, "", time.Hour)
	if got := store.Key(42); got != "features:42" {
		t.Fatalf("unexpected default key %q", got)
	}

	store = NewFeatureStore(nil, "readmission", time.Hour)
	if got := store.Key(7); got != "readmission:7" {
		t.Fatalf("unexpected key %q", got)
	}
}
