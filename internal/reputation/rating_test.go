package reputation

import "testing"

func TestComputeRating(t *testing.T) {
	tests := []struct {
		name       string
		fid        int64
		followers  int64
		tokens     int
		verified   bool
		wantRating int
		wantLabel  string
	}{
		{"og verified prolific", 500, 20000, 7, true, 100, LabelTrusted},
		{"established", 5000, 1500, 3, false, 65, LabelEstablished},
		{"active", 40000, 150, 2, false, 45, LabelActive},
		{"new account", 300000, 0, 1, false, 10, LabelUnknown},
		{"new but verified", 300000, 12, 1, true, 35, LabelNew},
		{"zero tokens still scores track record floor", 150000, 9, 0, false, 15, LabelUnknown},
		{"fid boundary 1000", 1000, 0, 0, false, 30, LabelNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, label := ComputeRating(tt.fid, tt.followers, tt.tokens, tt.verified)
			if got != tt.wantRating || label != tt.wantLabel {
				t.Errorf("ComputeRating() = %d %s, want %d %s", got, label, tt.wantRating, tt.wantLabel)
			}
		})
	}
}

func TestComputeRating_Bounds(t *testing.T) {
	for _, fid := range []int64{0, 999, 9999, 49999, 199999, 1 << 40} {
		for _, followers := range []int64{0, 10, 100, 1000, 10000, 1 << 40} {
			for _, tokens := range []int{0, 2, 3, 5, 100} {
				for _, verified := range []bool{false, true} {
					got, _ := ComputeRating(fid, followers, tokens, verified)
					if got < 0 || got > 100 {
						t.Fatalf("ComputeRating(%d, %d, %d, %v) = %d, out of range", fid, followers, tokens, verified, got)
					}
				}
			}
		}
	}
}

func TestLabel(t *testing.T) {
	cases := map[int]string{
		100: LabelTrusted, 80: LabelTrusted, 79: LabelEstablished, 60: LabelEstablished,
		59: LabelActive, 40: LabelActive, 39: LabelNew, 20: LabelNew, 19: LabelUnknown, 0: LabelUnknown,
	}
	for rating, want := range cases {
		if got := Label(rating); got != want {
			t.Errorf("Label(%d) = %s, want %s", rating, got, want)
		}
	}
}

func TestIsVerified(t *testing.T) {
	verified := []string{"0xAbC", "0x123"}
	if !IsVerified("0xabc", verified) {
		t.Error("expected case-insensitive match")
	}
	if IsVerified("0xdef", verified) {
		t.Error("unexpected match")
	}
	if IsVerified("0xabc", nil) {
		t.Error("unexpected match on empty list")
	}
}
