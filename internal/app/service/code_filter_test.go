package service

import "testing"

func TestCodeFilter(t *testing.T) {
	f := NewCodeFilter()
	f.Seed([]string{"promo-a", "promo-b"})
	f.Add("promo-c")

	for _, code := range []string{"promo-a", "promo-b", "promo-c"} {
		if !f.MayContain(code) {
			t.Fatalf("expected %q to be in the filter", code)
		}
	}
	// False positives are possible, false negatives never are. A clearly
	// unrelated code should be absent at this fill level.
	if f.MayContain("definitely-not-seeded-xyz") {
		t.Log("false positive on unseeded code, acceptable for a bloom filter")
	}
}
