package scoring

import "testing"

func TestSnapScore(t *testing.T) {
	cases := map[int]int{
		100: 100,
		95:  100,
		94:  90,
		85:  90,
		84:  80,
		72:  70,
		65:  70,
		55:  60,
		45:  50,
		25:  50,
		24:  0,
		-5:  0,
		0:   0,
	}
	for raw, want := range cases {
		if got := snapScore(raw); got != want {
			t.Errorf("snapScore(%d) = %d, want %d", raw, got, want)
		}
	}
}

func TestSnapScoreTieBreaksHigh(t *testing.T) {
	// 45 is equidistant between 50 and 40(not allowed)... exercise an exact
	// midpoint between two allowed values: 55 is 5 from 50 and 5 from 60.
	if got := snapScore(55); got != 60 {
		t.Errorf("snapScore(55) = %d, want 60 (tie breaks toward higher)", got)
	}
}
