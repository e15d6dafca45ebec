package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bountyline/internal/config"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"Overall score: 85/100. Solid change.", 85},
		{"Quality Score - 42", 42},
		{"I rate this 97/100", 97},
		{"confidence: 60", 60},
		{"no number here", -1},
		{"version 250 mentioned, score: 70", 70},
	}
	for _, tc := range cases {
		if got := ParseScore(tc.text); got != tc.want {
			t.Errorf("ParseScore(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quick-analyze" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("url") == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","error":"url is required"}`))
			return
		}
		w.Write([]byte(`{"status":"success","pr_url":"https://github.com/acme/widgets/pull/7","analysis":"Good tests. Score: 88/100","timestamp":"2024-01-01T00:00:00"}`))
	}))
	defer srv.Close()

	client, err := New(config.OracleConfig{AnalyzerURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	res, err := client.Analyze(context.Background(), "https://github.com/acme/widgets/pull/7")
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 88 {
		t.Fatalf("score = %d, want 88", res.Score)
	}
	if res.PRURL != "https://github.com/acme/widgets/pull/7" {
		t.Fatalf("pr_url = %s", res.PRURL)
	}
}

func TestAnalyzeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","error":"Analysis failed: boom"}`))
	}))
	defer srv.Close()

	client, err := New(config.OracleConfig{AnalyzerURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Analyze(context.Background(), "https://github.com/acme/widgets/pull/7"); err == nil {
		t.Fatal("expected error")
	}
}
