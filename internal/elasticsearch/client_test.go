package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cra-hub/cra-sync/pkg/models"
)

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	// Try to connect to ES
	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

// fakeES answers search requests with a fixed hit list.
func fakeES(t *testing.T, hits []models.NewsArticle, gotBody *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			*gotBody = string(body)
		}

		type hit struct {
			Source models.NewsArticle `json:"_source"`
		}
		var resp struct {
			Hits struct {
				Hits []hit `json:"hits"`
			} `json:"hits"`
		}
		for _, a := range hits {
			resp.Hits.Hits = append(resp.Hits.Hits, hit{Source: a})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_SearchDecodesHits(t *testing.T) {
	published := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	want := models.NewArticle("Cyber Resilience Act enters into force", "https://example.com/a", published, true, "summary", "Security Week")

	var body string
	server := fakeES(t, []models.NewsArticle{want}, &body)

	client, err := New(Config{Addresses: []string{server.URL}, Index: "cra-news"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, err := client.Search(t.Context(), "resilience", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
	if results[0].ID != want.ID || results[0].Source != "Security Week" {
		t.Errorf("Search() = %+v, want %+v", results[0], want)
	}
	if !strings.Contains(body, `"multi_match"`) || !strings.Contains(body, `"size":5`) {
		t.Errorf("unexpected query body: %s", body)
	}
}

func TestClient_LatestFiltersBySource(t *testing.T) {
	var body string
	server := fakeES(t, nil, &body)

	client, err := New(Config{Addresses: []string{server.URL}, Index: "cra-news"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Latest(t.Context(), "ENISA", 3); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if !strings.Contains(body, `"term":{"source":"ENISA"}`) {
		t.Errorf("expected source term in query, got %s", body)
	}
	if !strings.Contains(body, `"published":{"order":"desc"}`) {
		t.Errorf("expected published sort in query, got %s", body)
	}
}

func TestClient_CreateIndex(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "cra-sync-test-create",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := t.Context()

	// Delete index if exists (cleanup from previous test)
	client.DeleteIndex(ctx)

	if err := client.CreateIndex(ctx); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	// Creating again should not error (idempotent)
	if err := client.CreateIndex(ctx); err != nil {
		t.Fatalf("CreateIndex() second call error = %v", err)
	}

	client.DeleteIndex(ctx)
}

func TestClient_IndexAndSearch(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "cra-sync-test-search",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := t.Context()

	client.DeleteIndex(ctx)
	if err := client.CreateIndex(ctx); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	now := time.Now().UTC()
	articles := []models.NewsArticle{
		models.NewArticle("Cyber Resilience Act enters into force", "https://example.com/1", now.AddDate(0, 0, -2), true, "The regulation applies from 2027.", "EU Official"),
		models.NewArticle("ENISA publishes vulnerability reporting guidance", "https://example.com/2", now.AddDate(0, 0, -1), true, "Manufacturers must report actively exploited vulnerabilities.", "ENISA"),
		models.NewArticle("Security Week roundup", "https://example.com/3", now, true, "Ransomware and patching news.", "Security Week"),
	}

	n, err := client.IndexArticles(ctx, articles)
	if err != nil {
		t.Fatalf("IndexArticles() error = %v", err)
	}
	if n != len(articles) {
		t.Errorf("IndexArticles() = %d, want %d", n, len(articles))
	}

	client.Refresh(ctx)

	results, err := client.Search(ctx, "vulnerability reporting", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	found := false
	for _, r := range results {
		if r.ID == articles[1].ID {
			found = true
			break
		}
	}
	if !found {
		t.Error("Search results should include the ENISA article")
	}

	latest, err := client.Latest(ctx, "", 2)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(latest) != 2 || latest[0].ID != articles[2].ID {
		t.Errorf("Latest() should return the newest article first, got %+v", latest)
	}

	got, err := client.GetArticle(ctx, articles[0].ID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got == nil || got.Title != articles[0].Title {
		t.Errorf("GetArticle() = %+v", got)
	}

	missing, err := client.GetArticle(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("GetArticle(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("GetArticle() should return nil for a missing article")
	}

	client.DeleteIndex(ctx)
}
