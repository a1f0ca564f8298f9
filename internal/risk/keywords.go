// Package risk implements the two-stage risk evaluation of §4.6: a
// versioned keyword rule scan, followed by an optional cached LLM
// escalation when the rule stage is uncertain.
package risk

import "strings"

// Category is one of the six keyword groups §4.6 names.
type Category string

const (
	CategoryAccident       Category = "accident"
	CategorySalvage        Category = "salvage"
	CategoryImport         Category = "import"
	CategoryUrgency        Category = "urgency"
	CategoryOdometerTamper Category = "odometer_tamper"
	CategoryCosmetic       Category = "cosmetic"
)

// hardCategories trigger an immediate red verdict (§4.6 "Any
// salvage/accident keyword").
var hardCategories = map[Category]bool{
	CategorySalvage:  true,
	CategoryAccident: true,
}

// KeywordVersion names "version 1" of the Bulgarian-primary keyword lists
// (§9 "keyword lists are versioned and locale-aware").
const KeywordVersion = "v1"

var keywords = map[Category][]string{
	CategorySalvage: {
		"junkyard", "тотална щета", "бракуван", "негоден за движение",
		"salvage", "written off", "written-off",
	},
	CategoryAccident: {
		"катастрофа", "удар", "accident", "crashed", "дерматиран", "ударен",
	},
	CategoryImport: {
		"внос от", "import from", "германски внос", "швейцарски внос",
	},
	CategoryUrgency: {
		"спешно", "бърза продажба", "urgent", "quick sale", "today only", "само днес",
	},
	CategoryOdometerTamper: {
		"коригиран километраж", "превъртян километраж", "odometer rolled back",
		"odometer adjusted", "подменен километраж",
	},
	CategoryCosmetic: {
		"драскотина", "вдлъбнатина", "scratch", "dent", "козметичен дефект",
	},
}

// Scan finds keyword hits per category across title+description
// (case-folded substring match), returning the matched keyword for
// each hit so callers can show evidence.
func Scan(text string) map[Category][]string {
	folded := strings.ToLower(text)
	hits := make(map[Category][]string)
	for cat, words := range keywords {
		for _, w := range words {
			if strings.Contains(folded, strings.ToLower(w)) {
				hits[cat] = append(hits[cat], w)
			}
		}
	}
	return hits
}

// softFlagCount counts categories with at least one hit, excluding the
// hard (salvage/accident) categories already handled separately.
func softFlagCount(flags map[Category][]string) int {
	n := 0
	for cat := range flags {
		if !hardCategories[cat] {
			n++
		}
	}
	return n
}

func hasHardFlag(flags map[Category][]string) bool {
	for cat := range flags {
		if hardCategories[cat] {
			return true
		}
	}
	return false
}
