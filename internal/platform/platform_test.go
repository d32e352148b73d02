package platform

import "testing"

func TestDefaultCatalogEntriesAreValid(t *testing.T) {
	cat := DefaultCatalog()
	for _, cfg := range cat.Platforms {
		if err := cfg.Validate(); err != nil {
			t.Errorf("platform %s: %v", cfg.Name, err)
		}
	}
}

func TestIsApplicableMatchesFamilyModelAndFeatures(t *testing.T) {
	cat := DefaultCatalog()
	nhm := cat.Platforms[0]

	if !nhm.IsApplicable(6, 30, map[string]bool{"SSE2": true}) {
		t.Error("NHM should be applicable to family 6 model 30 with SSE2")
	}
	if nhm.IsApplicable(6, 999, map[string]bool{"SSE2": true}) {
		t.Error("NHM should not be applicable to an unlisted model")
	}
	if nhm.IsApplicable(6, 30, map[string]bool{"SSE2": false}) {
		t.Error("NHM should not be applicable without SSE2")
	}
}

func TestEntriesAssignStableOneBasedIDsInCatalogOrder(t *testing.T) {
	cat := DefaultCatalog()
	entries := cat.Entries()
	if len(entries) == 0 {
		t.Fatal("expected at least one entry")
	}
	for i, e := range entries {
		if e.ID != i+1 {
			t.Errorf("entries[%d].ID = %d, want %d", i, e.ID, i+1)
		}
	}
	// Deterministic threadsPerCore ordering within a platform (1 before 2).
	if entries[0].ThreadsPerCore != 1 || entries[1].ThreadsPerCore != 2 {
		t.Errorf("expected NHM_1T then NHM_2T, got %+v then %+v", entries[0], entries[1])
	}
}

func TestValidateRejectsTooFewCacheBuffers(t *testing.T) {
	cfg := Config{
		Name:                 "broken",
		DataCacheBufferSizes: []int{1, 2},
		RAMBufferSize:        1024,
		ThreadMap:            map[int]string{1: "x"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a validation error for < 3 cache buffers")
	}
}
