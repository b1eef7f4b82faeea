package durfmt

import "testing"

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{name: "bare seconds", in: "300", want: 300},
		{name: "minutes and seconds", in: "5:30", want: 330},
		{name: "hours minutes seconds", in: "1:30:45", want: 5445},
		{name: "zero", in: "0", want: 0},
		{name: "leading whitespace", in: " 90 ", want: 90},
		{name: "zero padded", in: "05:07", want: 307},
		{name: "empty", in: "", wantErr: true},
		{name: "non numeric", in: "abc", wantErr: true},
		{name: "too many segments", in: "1:2:3:4", wantErr: true},
		{name: "seconds overflow", in: "5:75", wantErr: true},
		{name: "minutes overflow", in: "1:75:00", wantErr: true},
		{name: "negative segment", in: "-5:30", wantErr: true},
		{name: "trailing colon", in: "5:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDuration(%q) = %d, expected error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{330, "5:30"},
		{5445, "1:30:45"},
		{0, "0:00"},
		{59, "0:59"},
		{60, "1:00"},
		{3600, "1:00:00"},
		{3661, "1:01:01"},
		{-5, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatSeconds(tt.in); got != tt.want {
			t.Errorf("FormatSeconds(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
