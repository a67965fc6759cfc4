package textutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nameCaser = cases.Title(language.AmericanEnglish)

// CollapseWhitespace trims value and folds every whitespace run to one space.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// TitleName title-cases a personal or business name after collapsing
// whitespace. Suffixes such as LLC and II keep their upper case.
func TitleName(value string) string {
	value = CollapseWhitespace(value)
	if value == "" {
		return ""
	}
	words := strings.Split(nameCaser.String(strings.ToLower(value)), " ")
	for i, word := range words {
		if _, ok := upperSuffixes[strings.ToUpper(strings.Trim(word, ".,"))]; ok {
			words[i] = strings.ToUpper(word)
		}
	}
	return strings.Join(words, " ")
}

var upperSuffixes = map[string]struct{}{
	"LLC": {}, "LLP": {}, "LP": {}, "II": {}, "III": {}, "IV": {}, "USA": {},
}

// FormatUSPhone renders a 10-digit (or 1-prefixed 11-digit) US number as
// "(555) 123-4567". Other inputs are returned with whitespace collapsed and
// ok=false.
func FormatUSPhone(value string) (string, bool) {
	digits := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return CollapseWhitespace(value), false
	}
	d := string(digits)
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:]), true
}

// ParseAmount parses a currency string such as "$1,250.00" or "(300.50)"
// into cents. Parenthesized amounts are negative.
func ParseAmount(value string) (int64, error) {
	raw := CollapseWhitespace(value)
	if raw == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	negative := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		negative = true
		raw = raw[1 : len(raw)-1]
	}
	raw = strings.NewReplacer("$", "", ",", "", " ", "", "USD", "", "usd", "").Replace(raw)
	if strings.HasPrefix(raw, "-") {
		negative = !negative
		raw = raw[1:]
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	cents := int64(math.Round(amount * 100))
	if negative {
		cents = -cents
	}
	return cents, nil
}

// FormatAmount renders cents as "$1,250.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", float64(cents)/100)
}
