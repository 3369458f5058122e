package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperScanner/internal/config"
	"PaperScanner/internal/logging"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>arXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2602.01234v1</id>
    <published>%[1]s</published>
    <title>Graph transformers at scale</title>
    <summary>We propose a new method.</summary>
    <author><name>Ada Lovelace</name></author>
    <arxiv:comment>To appear in NeurIPS 2025</arxiv:comment>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2602.01235v1</id>
    <published>%[1]s</published>
    <title>A study of graph transformers</title>
    <summary>Nothing to add.</summary>
    <author><name>Grace Hopper</name></author>
  </entry>
</feed>`

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "papers.db")
	cfg.Source.APIURL = apiURL
	cfg.Source.RequestInterval = 0
	cfg.Source.Categories = []string{"cs.LG"}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApplicationRefreshServesStoredPapers(t *testing.T) {
	t.Parallel()

	published := time.Now().AddDate(0, 0, -1).UTC().Format(time.RFC3339)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = fmt.Fprintf(w, feedTemplate, published)
	}))
	defer upstream.Close()

	ctx := context.Background()
	application, err := New(ctx, testConfig(t, upstream.URL), logging.NewWithWriter(io.Discard, "error", "text"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	stats, err := application.Pipeline().Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFetched)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Unmatched)

	rec := httptest.NewRecorder()
	application.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conference":"NeurIPS"`)
	assert.Contains(t, rec.Body.String(), `"total_papers":1`)

	papers, err := application.Catalog().Sample(ctx, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "2602.01234", papers[0].ID)
}

func TestNewRejectsUnknownScanner(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Source.Scanner = "ieee"

	_, err := New(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error", "text"))
	require.Error(t, err)
}
