package stream

import (
	"strings"
	"testing"
)

func TestDecodeSubtitleUTF8Passthrough(t *testing.T) {
	in := "1\n00:00:01,000 --> 00:00:02,000\nZdravo, svete\n"
	out, err := DecodeSubtitle([]byte(in))
	if err != nil {
		t.Fatalf("DecodeSubtitle: %v", err)
	}
	if out != in {
		t.Errorf("utf-8 input was altered: %q", out)
	}
}

func TestDecodeSubtitleWindows1250(t *testing.T) {
	// "čćšđž" in windows-1250
	raw := []byte{0xE8, 0xE6, 0x9A, 0xF0, 0x9E}
	out, err := DecodeSubtitle(raw)
	if err != nil {
		t.Fatalf("DecodeSubtitle: %v", err)
	}
	if out != "čćšđž" {
		t.Errorf("decoded = %q, want čćšđž", out)
	}
}

func TestConvertToWebVTT(t *testing.T) {
	srt := "1\n" +
		"00:00:01,500 --> 00:00:03,250\n" +
		"First line\n" +
		"\n" +
		"2\n" +
		"00:01:00,000 --> 00:01:02,750\n" +
		"Second line\n"

	vtt, err := ConvertToWebVTT(srt)
	if err != nil {
		t.Fatalf("ConvertToWebVTT: %v", err)
	}

	if !strings.HasPrefix(vtt, "WEBVTT\n\n") {
		t.Errorf("missing WEBVTT header: %q", vtt)
	}
	if !strings.Contains(vtt, "00:00:01.500 --> 00:00:03.250") {
		t.Errorf("first cue timestamps not converted: %q", vtt)
	}
	if !strings.Contains(vtt, "00:01:00.000 --> 00:01:02.750") {
		t.Errorf("second cue timestamps not converted: %q", vtt)
	}
	if strings.Contains(vtt, ",") {
		t.Errorf("comma separator survived conversion: %q", vtt)
	}
	if !strings.Contains(vtt, "First line\n") || !strings.Contains(vtt, "Second line\n") {
		t.Errorf("cue text lost: %q", vtt)
	}
}

func TestConvertToWebVTTPassthrough(t *testing.T) {
	in := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nAlready converted\n"
	out, err := ConvertToWebVTT(in)
	if err != nil {
		t.Fatalf("ConvertToWebVTT: %v", err)
	}
	if out != in {
		t.Errorf("vtt input was altered: %q", out)
	}
}
