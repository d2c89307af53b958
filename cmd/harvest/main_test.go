package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeExtractor serves a completed job for every submission.
func fakeExtractor(t *testing.T, submits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/batch/scrape":
			atomic.AddInt32(submits, 1)
			fmt.Fprint(w, `{"success": true, "id": "job-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/batch/scrape/job-1":
			fmt.Fprint(w, `{
				"status": "completed", "completed": 2, "total": 2,
				"data": [
					{"extract": {"courses": [
						{"title": "18th Edition Course", "price": "£395", "location": "Cardiff"},
						{"title": "AM2 Assessment", "price": 650}
					]}, "metadata": {"sourceURL": "https://alpha.example/courses"}},
					{"extract": {"courses": []}, "metadata": {"sourceURL": "https://beta.example/courses"}}
				]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSources(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	body := `batches:
  - number: 1
    name: Wales & South West
    providers:
      - name: Alpha Training
        slug: alpha
        url: https://alpha.example/courses
      - name: Beta Skills
        slug: beta
        url: https://beta.example/courses
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func setEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("HARVEST_EXTRACT_BASE_URL", baseURL)
	t.Setenv("HARVEST_EXTRACT_API_KEY", "test-key")
	t.Setenv("HARVEST_POLL_INTERVAL", "1ms")
	t.Setenv("HARVEST_MAX_POLLS", "3")
	t.Setenv("HARVEST_LOG_LEVEL", "error")
	t.Setenv("HARVEST_STORE", "")
	t.Setenv("HARVEST_SOURCES_FILE", "")
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.RunContext(context.Background(), append([]string{"harvest"}, args...))
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	var submits int32
	srv := fakeExtractor(t, &submits)
	setEnv(t, srv.URL)

	out, err := runApp(t, "--sources", writeSources(t), "run", "--batch", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var resp struct {
		Success      bool   `json:"success"`
		Cached       bool   `json:"cached"`
		TotalRecords int    `json:"totalRecords"`
		RegionName   string `json:"regionName"`
		Source       string `json:"source"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !resp.Success || resp.Cached || resp.TotalRecords != 2 || resp.Source != "live" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.RegionName != "Wales & South West" {
		t.Errorf("RegionName = %q", resp.RegionName)
	}
	if submits != 1 {
		t.Errorf("submits = %d", submits)
	}
}

func TestRunCommandUnknownBatch(t *testing.T) {
	var submits int32
	srv := fakeExtractor(t, &submits)
	setEnv(t, srv.URL)

	_, err := runApp(t, "--sources", writeSources(t), "run", "--batch", "4")
	if err == nil || !strings.Contains(err.Error(), "1-1") {
		t.Fatalf("Expected range error, got %v", err)
	}
	if submits != 0 {
		t.Errorf("submits = %d", submits)
	}
}

func TestBatchesCommand(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")

	out, err := runApp(t, "batches")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if !strings.HasPrefix(out, "1) ") || !strings.Contains(out, "providers)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestExportCommandSQLite(t *testing.T) {
	var submits int32
	srv := fakeExtractor(t, &submits)
	setEnv(t, srv.URL)
	dir := t.TempDir()
	t.Setenv("HARVEST_SQLITE_PATH", filepath.Join(dir, "harvest.db"))
	sources := writeSources(t)

	// Runs share state through the SQLite file.
	if _, err := runApp(t, "--store", "sqlite", "--sources", sources, "run-all"); err != nil {
		t.Fatalf("run-all: %v", err)
	}
	out, err := runApp(t, "--store", "sqlite", "--sources", sources, "run", "--batch", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `"cached": true`) {
		t.Errorf("Expected cached run, got %s", out)
	}

	csvPath := filepath.Join(dir, "out.csv")
	out, err = runApp(t, "--store", "sqlite", "--sources", sources, "export", "--out", csvPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "wrote 2 records") {
		t.Errorf("unexpected export output %q", out)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil || len(rows) != 3 {
		t.Fatalf("csv rows = %d, err %v", len(rows), err)
	}
	if submits != 1 {
		t.Errorf("submits = %d, want 1", submits)
	}
}

func TestSetupRejectsUnknownStore(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")
	if _, err := runApp(t, "--store", "redis", "batches"); err == nil {
		t.Fatalf("Expected error for unknown store")
	}
}
