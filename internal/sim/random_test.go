package sim

import "testing"

func TestScripted(t *testing.T) {
	s := NewScripted(0, 2, 4)
	got := []int{s.Intn(3), s.Intn(3), s.Intn(3), s.Intn(3)}
	want := []int{0, 2, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pick %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPickUniformCoversAll(t *testing.T) {
	seen := map[string]bool{}
	opts := []string{"LOW", "MEDIUM", "HIGH"}
	for i := 0; i < 500; i++ {
		seen[Pick[string](Uniform{}, opts)] = true
	}
	if len(seen) != len(opts) {
		t.Errorf("expected all options drawn, got %v", seen)
	}
}
