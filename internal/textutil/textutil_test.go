package textutil

import (
	"math"
	"testing"
)

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  123   Main \t St\n "); got != "123 Main St" {
		t.Fatalf("CollapseWhitespace() = %q", got)
	}
}

func TestTitleName(t *testing.T) {
	tests := map[string]string{
		"ADA   LOVELACE":    "Ada Lovelace",
		"acme holdings llc": "Acme Holdings LLC",
		"john smith iii":    "John Smith III",
		"":                  "",
	}
	for in, want := range tests {
		if got := TitleName(in); got != want {
			t.Errorf("TitleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatUSPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"555.123.4567", "(555) 123-4567", true},
		{"+1 (555) 123 4567", "(555) 123-4567", true},
		{"12345", "12345", false},
		{" ext  200 ", "ext 200", false},
	}
	for _, tc := range tests {
		got, ok := FormatUSPhone(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("FormatUSPhone(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseAndFormatAmount(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		out   string
	}{
		{"$1,250.00", 125000, "$1,250.00"},
		{"1250.5", 125050, "$1,250.50"},
		{"(300.25)", -30025, "-$300.25"},
		{"USD 12", 1200, "$12.00"},
	}
	for _, tc := range tests {
		cents, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if cents != tc.cents {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, cents, tc.cents)
		}
		if got := FormatAmount(cents); got != tc.out {
			t.Fatalf("FormatAmount(%d) = %q, want %q", cents, got, tc.out)
		}
	}
	for _, bad := range []string{"", "twelve", "$"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestKeySimilarity(t *testing.T) {
	if got := KeySimilarity("owner name", "Owner_Name"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical tokens should score 1, got %v", got)
	}
	if got := KeySimilarity("owner", "parcel"); got != 0 {
		t.Fatalf("disjoint tokens should score 0, got %v", got)
	}
	if got := KeySimilarity("", "x"); got != 0 {
		t.Fatalf("empty input should score 0, got %v", got)
	}
	a, b := KeySimilarity("surplus amount", "amount of surplus funds"), KeySimilarity("amount of surplus funds", "surplus amount")
	if a != b || a <= 0.5 {
		t.Fatalf("expected symmetric partial similarity, got %v %v", a, b)
	}
}

func TestMatchKey(t *testing.T) {
	keys := []string{"Case Number", "NAME OF OWNER", "Surplus Amount", "owner_phone"}
	tests := []struct {
		want  string
		match string
		ok    bool
	}{
		{"Case Number", "Case Number", true},
		{"case_number", "Case Number", true},
		{"owner_name", "NAME OF OWNER", true},
		{"surplus_amount", "Surplus Amount", true},
		{"parcel_id", "", false},
	}
	for _, tc := range tests {
		got, ok := MatchKey(tc.want, keys, 0.75)
		if got != tc.match || ok != tc.ok {
			t.Errorf("MatchKey(%q) = %q,%v want %q,%v", tc.want, got, ok, tc.match, tc.ok)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := SanitizeFileName(` county: "intake" / 2024 `); got != "county- intake - 2024" {
		t.Fatalf("SanitizeFileName() = %q", got)
	}
	if got := SanitizeToken("Owner Name!"); got != "owner_name" {
		t.Fatalf("SanitizeToken() = %q", got)
	}
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("SanitizeToken(blank) = %q", got)
	}
}
