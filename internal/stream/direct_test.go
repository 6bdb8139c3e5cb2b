package stream

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestServeDirectFileRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("0123456789abcdef"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		rangeHeader  string
		wantStatus   int
		wantBody     string
		contentRange string
	}{
		{"no range", "", http.StatusOK, "0123456789abcdef", ""},
		{"bounded", "bytes=2-5", http.StatusPartialContent, "2345", "bytes 2-5/16"},
		{"open ended", "bytes=10-", http.StatusPartialContent, "abcdef", "bytes 10-15/16"},
		{"suffix", "bytes=-4", http.StatusPartialContent, "cdef", "bytes 12-15/16"},
		{"suffix beyond size", "bytes=-100", http.StatusPartialContent, "0123456789abcdef", "bytes 0-15/16"},
		{"start past end", "bytes=99-", http.StatusRequestedRangeNotSatisfiable, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}
			rec := httptest.NewRecorder()

			if err := ServeDirectFile(rec, req, path); err != nil {
				t.Fatalf("ServeDirectFile: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.contentRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.contentRange)
			}
			if tt.wantStatus != http.StatusRequestedRangeNotSatisfiable {
				if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
					t.Errorf("Content-Type = %q, want video/mp4", got)
				}
			}
		})
	}
}
