package rules

import "testing"

func TestApplyStanceToAccuracy(t *testing.T) {
	cases := []struct {
		pool   int
		stance Stance
		want   int
	}{
		{5, StanceNeutral, 5},
		{5, StanceDefensive, 3},
		{4, StanceDefensive, 2},
		{5, StanceOffensive, 7},
		{4, StanceOffensive, 6},
	}
	for _, tc := range cases {
		if got := ApplyStanceToAccuracy(tc.pool, tc.stance); got != tc.want {
			t.Fatalf("accuracy %d in %s stance: expected %d, got %d", tc.pool, tc.stance, tc.want, got)
		}
	}
}

func TestApplyStanceToDodge(t *testing.T) {
	cases := []struct {
		pool   int
		stance Stance
		want   int
	}{
		{5, StanceNeutral, 5},
		{5, StanceDefensive, 7},
		{5, StanceOffensive, 3},
		{4, StanceOffensive, 2},
	}
	for _, tc := range cases {
		if got := ApplyStanceToDodge(tc.pool, tc.stance); got != tc.want {
			t.Fatalf("dodge %d in %s stance: expected %d, got %d", tc.pool, tc.stance, tc.want, got)
		}
	}
}
