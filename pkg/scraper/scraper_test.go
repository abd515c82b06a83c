package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/wissen/internal/models"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, "example.com", s.baseHost)

	_, err = NewWithConfig(ScraperConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestShouldProcessURL(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		IgnorePatterns: []string{"/ignore/", "private"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/produkte/motoroel", true},
		{"https://example.com/ignore/page.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/datenblatt.pdf", false},
		{"https://example.com/private/page.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := s.shouldProcessURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestScrapeWithMockServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Motoröle</title></head>
				<body>
					<nav>Startseite | Kontakt</nav>
					<main>
						<h1>Wunsch BOAT SYNTH 2-T</h1>
						<p>Vollsynthetisches 2-Takt-Motoröl. Cookies akzeptieren</p>
						<a href="/seite2.html#oben">Mehr</a>
						<a href="/fehlt.html">Kaputt</a>
						<a href="https://andere-seite.de/">Extern</a>
					</main>
				</body>
			</html>
		`))
	})
	mux.HandleFunc("/seite2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><article>Mischungsverhältnis 1:50</article><a href="/">Zurück</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var visited []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:    server.URL,
		MaxDepth:   1,
		RateLimit:  100,
		OnProgress: func(url string) { visited = append(visited, url) },
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0]
	assert.Equal(t, server.URL+"/", doc.URL)
	assert.Equal(t, "Motoröle", doc.Title)
	assert.Contains(t, doc.Content, "Wunsch BOAT SYNTH 2-T")
	assert.Contains(t, doc.Content, "Vollsynthetisches 2-Takt-Motoröl.")
	assert.NotContains(t, doc.Content, "Startseite")
	assert.NotContains(t, doc.Content, "Cookies akzeptieren")
	assert.Equal(t, "html", doc.Metadata[models.MetaSourceType])
	assert.Equal(t, models.CategoryWeb, doc.Metadata[models.MetaSourceCategory])

	assert.Equal(t, server.URL+"/seite2.html", docs[1].URL)
	assert.Equal(t, "Mischungsverhältnis 1:50", docs[1].Content)

	assert.Equal(t, []string{server.URL + "/", server.URL + "/seite2.html", server.URL + "/fehlt.html"}, visited)
}

func TestScrapeStopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main>Inhalt</main></body></html>`))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Scrape(ctx, server.URL+"/")
	assert.ErrorIs(t, err, context.Canceled)
}
