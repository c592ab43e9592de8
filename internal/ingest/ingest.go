// Package ingest builds the knowledge base: it crawls site pages,
// extracts FAQ entries or readable text, chunks, embeds, and upserts
// the result into the vector index.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/embeddings"
	"github.com/avenhq/supportd/internal/vectorstore"
)

// minPageContent filters out boilerplate-only pages in the generic
// extraction path.
const minPageContent = 100

// defaultConcurrency bounds parallel page fetches during a crawl.
const defaultConcurrency = 5

// Stats summarizes one ingestion run.
type Stats struct {
	Pages    int `json:"pages"`
	Chunks   int `json:"chunks"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

type sitemap struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// chunk is one embeddable unit with its payload metadata.
type chunk struct {
	text     string
	metadata map[string]interface{}
}

// Pipeline ingests web content into the vector index.
type Pipeline struct {
	http     *resty.Client
	embedder embeddings.Embedder
	index    vectorstore.Index
	cfg      config.IngestConfig
	logger   *zap.Logger
}

// New creates a Pipeline.
func New(embedder embeddings.Embedder, index vectorstore.Index, cfg config.IngestConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pipeline{
		http:     resty.New().SetTimeout(timeout),
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run ingests the configured support page.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	return p.IngestURLs(ctx, []string{p.cfg.SupportURL})
}

// RunSitemap discovers pages from the sitemap and ingests all of them.
func (p *Pipeline) RunSitemap(ctx context.Context, sitemapURL string) (Stats, error) {
	urls, err := p.fetchSitemap(ctx, sitemapURL)
	if err != nil {
		return Stats{}, err
	}
	p.logger.Info("sitemap fetched", zap.Int("urls", len(urls)))
	return p.IngestURLs(ctx, urls)
}

// IngestURLs fetches and ingests the given pages with bounded
// concurrency. Per-page failures are logged and skipped; the run fails
// only when embedding or upserting fails.
func (p *Pipeline) IngestURLs(ctx context.Context, urls []string) (Stats, error) {
	if p.embedder == nil || p.index == nil {
		return Stats{}, fmt.Errorf("ingestion requires an embedder and a vector index")
	}
	if err := p.index.EnsureCollection(ctx); err != nil {
		return Stats{}, fmt.Errorf("preparing collection: %w", err)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var chunks []chunk
	stats := Stats{}

	var wg sync.WaitGroup
	for i := 0; i < defaultConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				pageChunks, err := p.processPage(ctx, url)
				if err != nil {
					p.logger.Warn("page skipped", zap.String("url", url), zap.Error(err))
					continue
				}
				mu.Lock()
				stats.Pages++
				chunks = append(chunks, pageChunks...)
				mu.Unlock()
			}
		}()
	}

	for _, url := range urls {
		jobs <- url
	}
	close(jobs)
	wg.Wait()

	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		p.logger.Warn("no chunks extracted")
		return stats, nil
	}

	upserted, err := p.upsertChunks(ctx, chunks)
	if err != nil {
		return stats, err
	}
	stats.Upserted = upserted
	stats.Skipped = stats.Chunks - upserted

	p.logger.Info("ingestion complete",
		zap.Int("pages", stats.Pages),
		zap.Int("chunks", stats.Chunks),
		zap.Int("upserted", stats.Upserted))
	return stats, nil
}

// processPage fetches one page and turns it into chunks: structured
// FAQ entries for support pages, chunked readable text otherwise.
func (p *Pipeline) processPage(ctx context.Context, url string) ([]chunk, error) {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching page: server returned %s", resp.Status())
	}

	doc, err := html.Parse(strings.NewReader(string(resp.Body())))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	crawledAt := time.Now().UTC().Format(time.RFC3339)

	if strings.Contains(url, "/support") {
		if faqs := ParseFAQs(doc); len(faqs) > 0 {
			out := make([]chunk, 0, len(faqs))
			for _, faq := range faqs {
				out = append(out, chunk{
					text: faq.Text(),
					metadata: map[string]interface{}{
						"url":          url,
						"section":      faq.Section,
						"question":     faq.Question,
						"last_crawled": crawledAt,
					},
				})
			}
			p.logger.Debug("faqs extracted", zap.String("url", url), zap.Int("count", len(out)))
			return out, nil
		}
	}

	text := ExtractText(doc)
	if len(strings.TrimSpace(text)) < minPageContent {
		return nil, fmt.Errorf("page has no substantial content")
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(p.cfg.ChunkOverlap),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunking page: %w", err)
	}

	out := make([]chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, chunk{
			text: part,
			metadata: map[string]interface{}{
				"url":          url,
				"last_crawled": crawledAt,
			},
		})
	}
	return out, nil
}

// upsertChunks embeds all chunks in one batch and writes them to the
// index. Chunk ids are content hashes, so re-ingesting unchanged text
// overwrites in place instead of duplicating.
func (p *Pipeline) upsertChunks(ctx context.Context, chunks []chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		id := contentHash(c.text)
		metadata := make(map[string]interface{}, len(c.metadata)+2)
		for k, v := range c.metadata {
			metadata[k] = v
		}
		metadata["text"] = c.text
		metadata["content_hash"] = id
		points[i] = vectorstore.Point{ID: id, Vector: vectors[i], Metadata: metadata}
	}

	if err := p.index.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upserting chunks: %w", err)
	}
	return len(points), nil
}

// fetchSitemap returns all page URLs listed in the sitemap.
func (p *Pipeline) fetchSitemap(ctx context.Context, url string) ([]string, error) {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching sitemap: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching sitemap: server returned %s", resp.Status())
	}

	var sm sitemap
	if err := xml.Unmarshal(resp.Body(), &sm); err != nil {
		return nil, fmt.Errorf("parsing sitemap: %w", err)
	}

	urls := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
