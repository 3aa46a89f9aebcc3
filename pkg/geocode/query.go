package geocode

import (
	"regexp"
	"strings"
)

var (
	bracketed    = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	prepositions = regexp.MustCompile(`(?i)\b(in|at|near|over|from|of)\b`)
	article      = regexp.MustCompile(`^(the|a|an)\b\s*`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// phrases that follow a preposition but never name a place
var timesOfDay = map[string]bool{
	"night": true, "nighttime": true, "midnight": true, "dusk": true, "dawn": true,
	"daybreak": true, "sunrise": true, "sunset": true, "twilight": true, "noon": true,
	"morning": true, "evening": true, "blue hour": true, "golden hour": true,
}

type phrase struct {
	prep string
	text string
}

// ParseQuery turns a post title into a geocoding query. Bracketed and
// parenthesised segments ("[OC]", "(4000x3000)") are dropped and the title is
// split into the phrases that follow a locational preposition. Phrases naming
// a time of day are ignored. The first phrase after in, at or near wins;
// otherwise the first one not led by an article, then the last one. A title
// without any such phrase is used whole, minus its time of day.
//
//	"Paris [OC] (4000x3000)"         -> "paris"
//	"Sunset in Kyoto"                -> "kyoto"
//	"Lights of Hong Kong at night"   -> "hong kong"
//	"View of Lisbon from the castle" -> "lisbon"
func ParseQuery(title string) string {
	q := bracketed.ReplaceAllString(title, " ")
	phrases, rest := splitPhrases(q)
	if place := pickPlace(phrases); place != "" {
		return place
	}
	return normalize(rest)
}

// splitPhrases also returns q with its time of day phrases cut out
func splitPhrases(q string) ([]phrase, string) {
	locs := prepositions.FindAllStringSubmatchIndex(q, -1)
	phrases := make([]phrase, 0, len(locs))

	var rest strings.Builder
	rest.WriteString(q[:firstIndex(locs, len(q))])
	for i, loc := range locs {
		end := len(q)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := normalize(q[loc[1]:end])
		if timesOfDay[article.ReplaceAllString(text, "")] {
			continue
		}
		rest.WriteString(q[loc[0]:end])
		if text != "" {
			phrases = append(phrases, phrase{prep: strings.ToLower(q[loc[2]:loc[3]]), text: text})
		}
	}
	return phrases, rest.String()
}

func firstIndex(locs [][]int, fallback int) int {
	if len(locs) == 0 {
		return fallback
	}
	return locs[0][0]
}

func pickPlace(phrases []phrase) string {
	for _, p := range phrases {
		switch p.prep {
		case "in", "at", "near":
			return p.text
		}
	}
	for _, p := range phrases {
		if !article.MatchString(p.text) {
			return p.text
		}
	}
	if len(phrases) > 0 {
		return phrases[len(phrases)-1].text
	}
	return ""
}

func normalize(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ,.;:!?-|/")
	return strings.ToLower(s)
}
