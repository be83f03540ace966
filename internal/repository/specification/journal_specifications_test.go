package specification

import (
	"encoding/json"
	"testing"
)

func TestThemeContainmentLiteralEscapesTerm(t *testing.T) {
	cases := []struct {
		name  string
		theme string
		want  string
	}{
		{"plain term", "work", `["work"]`},
		{"embedded quote", `my "big" project`, `["my \"big\" project"]`},
		{"backslash", `a\b`, `["a\\b"]`},
		{"empty", "", `[""]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := themeContainmentLiteral(tc.theme)
			if got != tc.want {
				t.Errorf("literal = %s, want %s", got, tc.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("literal %s is not valid JSON", got)
			}

			var roundTrip []string
			if err := json.Unmarshal([]byte(got), &roundTrip); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(roundTrip) != 1 || roundTrip[0] != tc.theme {
				t.Errorf("round trip = %v, want [%s]", roundTrip, tc.theme)
			}
		})
	}
}
