package clip

import (
	"errors"
	"testing"
)

func TestParseTimeSpecVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		seconds int
	}{
		{name: "minutes", raw: "5:00", seconds: 300},
		{name: "hours", raw: "1:05:30", seconds: 3930},
		{name: "plain seconds", raw: "90", seconds: 90},
		{name: "zero", raw: "0", seconds: 0},
		{name: "padded", raw: "00:37", seconds: 37},
		{name: "trimmed whitespace", raw: " 1:02 ", seconds: 62},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeSpec(tt.raw)
			if err != nil {
				t.Fatalf("ParseTimeSpec(%q) error: %v", tt.raw, err)
			}
			if got.Seconds() != tt.seconds {
				t.Fatalf("Seconds() = %d, want %d", got.Seconds(), tt.seconds)
			}
		})
	}
}

func TestParseTimeSpecInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "abc", "1:60", "60:00:00:00", "-5", "1:-2", "1:2:3:4", "1h30m", "+5", "+5:10", "1:+2", "1: 2"} {
		if _, err := ParseTimeSpec(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("ParseTimeSpec(%q) = %v, want ErrInvalidFormat", raw, err)
		}
	}
}

func TestTimeSpecString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "5:00", want: "5:00"},
		{raw: "1:05:30", want: "1:05:30"},
		{raw: "90", want: "1:30"},
		{raw: "0", want: "0:00"},
	}
	for _, tt := range tests {
		ts, err := ParseTimeSpec(tt.raw)
		if err != nil {
			t.Fatalf("ParseTimeSpec(%q) error: %v", tt.raw, err)
		}
		if got := ts.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewRequestRange(t *testing.T) {
	t.Parallel()
	start, _ := ParseTimeSpec("00:44")
	end, _ := ParseTimeSpec("00:37")

	if _, err := NewRequest(1, 1, "https://example/video", start, end); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("reversed range: err = %v, want ErrInvalidRange", err)
	}
	if _, err := NewRequest(1, 1, "https://example/video", start, start); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("start==end: err = %v, want ErrInvalidRange", err)
	}

	req, err := NewRequest(1, 1, "https://example/video", end, start)
	if err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
	if req.Duration() != 7 {
		t.Fatalf("Duration() = %d, want 7", req.Duration())
	}
	if req.ID == "" {
		t.Fatal("expected a generated request ID")
	}

	other, err := NewRequest(1, 1, "https://example/video", end, start)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if other.ID == req.ID {
		t.Fatal("request IDs must be unique")
	}
}

func TestNewRequestEmptyURL(t *testing.T) {
	t.Parallel()
	start, _ := ParseTimeSpec("0")
	end, _ := ParseTimeSpec("10")
	if _, err := NewRequest(1, 1, "  ", start, end); err == nil {
		t.Fatal("expected error for empty url")
	}
}
