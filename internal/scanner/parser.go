package scanner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zpavlovic/kinoteka/internal/models"
)

// Technical tokens match as bare substrings, so "HDTV" carries both a
// format ("HD") and a source ("HDTV"). Longer alternatives are listed
// first so "WEB-DL" and "FHD" win over their prefixes.
var (
	yearRegex    = regexp.MustCompile(`\((\d{4})\)`)
	qualityRegex = regexp.MustCompile(`(?i)\d{3,4}p`)
	formatRegex  = regexp.MustCompile(`(?i)(4K|UHD|FHD|HD)`)
	sourceRegex  = regexp.MustCompile(`(?i)(WEB-DL|BluRay|BRRip|DVDRip|HDTV|WEB)`)
	audioRegex   = regexp.MustCompile(`(?i)(5\.1|7\.1|AAC|DTS|AC3)`)
)

// ParseMovieName extracts title, year and technical tokens from a raw
// folder or file name. Each token is matched independently against the
// original string, so overlapping substrings can populate more than one
// field.
func ParseMovieName(raw string) models.ParsedName {
	parsed := models.ParsedName{Title: strings.TrimSpace(raw)}

	if m := yearRegex.FindStringSubmatchIndex(raw); m != nil {
		year, err := strconv.Atoi(raw[m[2]:m[3]])
		if err == nil {
			parsed.Year = &year
			parsed.Title = strings.TrimSpace(raw[:m[0]])
		}
	}

	if m := qualityRegex.FindString(raw); m != "" {
		parsed.Quality = &m
	}
	if m := formatRegex.FindString(raw); m != "" {
		parsed.Format = &m
	}
	if m := sourceRegex.FindString(raw); m != "" {
		parsed.Source = &m
	}
	if m := audioRegex.FindString(raw); m != "" {
		parsed.Audio = &m
	}

	return parsed
}

var (
	leadingOrdinalRegex = regexp.MustCompile(`^\d+\.\s+`)
	bracketTagRegex     = regexp.MustCompile(`\[[^\]]*\]`)
	trailingDashRegex   = regexp.MustCompile(`\s*-\s*$`)
	duplicateYearRegex  = regexp.MustCompile(`\b(\d{4})\s+\((\d{4})\)`)
	whitespaceRegex     = regexp.MustCompile(`\s+`)

	technicalTokenRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{3,4}p\b`),
		regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|hevc|avc|av1|xvid|divx)\b`),
		regexp.MustCompile(`(?i)\b(bluray|blu-ray|brrip|bdrip|webrip|web-dl|webdl|hdtv|dvdrip|dvdscr|remux)\b`),
		regexp.MustCompile(`(?i)\b(extended|unrated|remastered|theatrical|limited|proper|repack|internal)\b`),
		regexp.MustCompile(`(?i)\b(8bit|10bit|12bit)\b`),
		regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|dolby\s*vision|sdr)\b`),
	}
)

// CleanTitle is the display-time transform applied to parsed titles.
// It is idempotent: cleaning an already-clean title is a no-op.
func CleanTitle(title string) string {
	s := leadingOrdinalRegex.ReplaceAllString(title, "")
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = bracketTagRegex.ReplaceAllString(s, " ")
	for _, re := range technicalTokenRegexes {
		s = re.ReplaceAllString(s, " ")
	}
	// "Name 2014 (2014)" → "Name (2014)"
	s = duplicateYearRegex.ReplaceAllStringFunc(s, func(m string) string {
		parts := duplicateYearRegex.FindStringSubmatch(m)
		if parts[1] == parts[2] {
			return "(" + parts[2] + ")"
		}
		return m
	})
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingDashRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
