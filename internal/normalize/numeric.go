package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var digitsRe = regexp.MustCompile(`[\d\s.,]+`)

const (
	minYear    = 1980
	minMileage = 0
	maxMileage = 1_000_000
)

func maxYear() int {
	return time.Now().UTC().Year() + 1
}

// ExtractYear pulls a plausible 4-digit year out of free text, rejecting
// anything outside [1980, current_year+1] (§4.3).
func ExtractYear(raw string) (int, bool) {
	matches := regexp.MustCompile(`\b(19|20)\d{2}\b`).FindAllString(raw, -1)
	for _, m := range matches {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if y >= minYear && y <= maxYear() {
			return y, true
		}
	}
	return 0, false
}

// ExtractMileage pulls the numeric mileage out of free text (tolerating
// "," and "." as thousands separators and trailing "km"/"км"), rejecting
// values outside [0, 1,000,000] (§4.3).
func ExtractMileage(raw string) (int, bool) {
	match := digitsRe.FindString(raw)
	if match == "" {
		return 0, false
	}
	cleaned := strings.NewReplacer(" ", "", ",", "", ".", "").Replace(strings.TrimSpace(match))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	if v < minMileage || v > maxMileage {
		return 0, false
	}
	return v, true
}

var priceDigitsRe = regexp.MustCompile(`[\d]+([.,]\d+)?`)

// cleanPriceDigits extracts the first numeric token from a free-form
// price string, normalizing a "," decimal separator to ".".
func cleanPriceDigits(raw string) string {
	stripped := strings.ReplaceAll(raw, " ", "")
	match := priceDigitsRe.FindString(stripped)
	return strings.Replace(match, ",", ".", 1)
}
