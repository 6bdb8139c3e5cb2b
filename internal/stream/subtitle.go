package stream

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeSubtitle returns the subtitle text as UTF-8. Files that are not
// valid UTF-8 are assumed to be Windows-1250, the usual encoding for
// Central European subtitle releases.
func DecodeSubtitle(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1250.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode windows-1250: %w", err)
	}
	return string(decoded), nil
}

var srtTimeRegex = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}),(\d{3})`)

// ConvertToWebVTT turns decoded subtitle text into WebVTT. SRT cue
// timestamps have their comma millisecond separators replaced with
// periods; text already carrying a WEBVTT header passes through.
func ConvertToWebVTT(text string) (string, error) {
	if strings.HasPrefix(strings.TrimPrefix(text, "\xef\xbb\xbf"), "WEBVTT") {
		return text, nil
	}

	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	scanner := bufio.NewScanner(strings.NewReader(text))
	// Increase buffer size for long lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\xef\xbb\xbf")

		if m := srtTimeRegex.FindStringSubmatch(line); m != nil {
			sb.WriteString(fmt.Sprintf("%s.%s --> %s.%s\n", m[1], m[2], m[3], m[4]))
			continue
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String(), scanner.Err()
}
