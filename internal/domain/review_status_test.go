package domain

import "testing"

func TestParseFileReviewStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    FileReviewStatus
		wantErr bool
	}{
		{name: "approved", raw: "APPROVED", want: ReviewApproved},
		{name: "lowercase", raw: "rejected", want: ReviewRejected},
		{name: "dash form", raw: " re-applying ", want: ReviewReApplying},
		{name: "invalid", raw: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFileReviewStatus(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFileReviewStatus() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseFileReviewStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileReviewStatusSettled(t *testing.T) {
	t.Parallel()

	for _, s := range []FileReviewStatus{ReviewApproved, ReviewRejected, ReviewFailed} {
		if !s.Settled() {
			t.Fatalf("%s should be settled", s)
		}
	}
	for _, s := range []FileReviewStatus{ReviewAwaiting, ReviewReApplying} {
		if s.Settled() {
			t.Fatalf("%s should not be settled", s)
		}
	}
}
