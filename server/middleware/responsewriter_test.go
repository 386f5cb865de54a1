package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusWriter(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	if sw.Status() != http.StatusOK {
		t.Fatalf("untouched writer status = %d", sw.Status())
	}

	sw.WriteHeader(http.StatusTooManyRequests)
	sw.WriteHeader(http.StatusOK)
	_, _ = sw.Write([]byte("slow down"))
	if sw.Status() != http.StatusTooManyRequests {
		t.Errorf("status = %d, first WriteHeader wins", sw.Status())
	}
	if sw.bytes != int64(len("slow down")) {
		t.Errorf("bytes = %d", sw.bytes)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.flowkit.dev", "https://*.flowkit.dev"}
	tests := map[string]bool{
		"https://app.flowkit.dev": true,
		"HTTPS://APP.FLOWKIT.DEV": true,
		"https://a.b.flowkit.dev": true,
		"https://flowkit.dev":     false,
		"https://evilflowkit.dev": false,
		"http://app.flowkit.dev":  false,
	}
	for origin, want := range tests {
		if got := originAllowed(origin, allowed); got != want {
			t.Errorf("originAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
	if !originAllowed("https://anything.example", []string{"*"}) {
		t.Error("wildcard should allow every origin")
	}
}
