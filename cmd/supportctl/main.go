// Package main implements the supportctl CLI for manual operations
// against the supportd HTTP server and the knowledge base.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/avenhq/supportd/internal/cache"
	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/embeddings"
	"github.com/avenhq/supportd/internal/ingest"
	"github.com/avenhq/supportd/internal/logging"
	"github.com/avenhq/supportd/internal/vectorstore"
)

var (
	// serverURL is the base URL for the supportd HTTP server
	serverURL string
	// configPath is the optional YAML config file for local commands
	configPath string
	// sitemapURL switches ingest to sitemap crawling
	sitemapURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "supportctl",
	Short: "CLI for supportd server operations",
	Long: `supportctl is a command-line interface for the Aven support daemon.
It provides commands for asking questions, chatting, checking server
health, and ingesting the support site into the knowledge base.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "supportd server URL")
	ingestCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	ingestCmd.Flags().StringVar(&sitemapURL, "sitemap", "", "crawl a sitemap instead of the support page")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(ingestCmd)
}

// askCmd runs a single question through the answer pipeline
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the support assistant a single question",
	Long: `Ask the support assistant a single question.

Examples:
  # Ask a question
  supportctl ask "What is the Aven card?"

  # Use a different server
  supportctl ask --server http://localhost:8080 "What are the fees?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

// chatCmd runs an interactive chat session
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the support assistant.
The session keeps conversation history on the server. Type "exit" or
press Ctrl-D to quit.`,
	RunE: runChat,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check supportd server health",
	RunE:  runHealth,
}

// ingestCmd crawls the support site into the knowledge base
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the support site into the knowledge base",
	Long: `Crawl the Aven support site, chunk its content, and upsert the
chunks into the vector index. Runs locally against Qdrant and the
embedding backend rather than through the server.

Examples:
  # Ingest the support FAQ page
  supportctl ingest

  # Crawl a sitemap
  supportctl ingest --sitemap https://www.aven.com/sitemap.xml`,
	RunE: runIngest,
}

// AskRequest matches internal/server AskRequest
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse matches internal/server AskResponse
type AskResponse struct {
	Response     string  `json:"response"`
	ResponseTime float64 `json:"response_time"`
}

// ChatRequest matches internal/server ChatRequest
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse matches internal/server ChatResponse
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// HealthResponse matches internal/server HealthResponse
type HealthResponse struct {
	Status          string `json:"status"`
	AgentAvailable  bool   `json:"agent_available"`
	VapiAvailable   bool   `json:"vapi_available"`
	ActiveSessions  int    `json:"active_sessions"`
	ActiveVapiCalls int    `json:"active_vapi_calls"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	var resp AskResponse
	if err := postJSON("/ask", AskRequest{Query: args[0]}, &resp, 120*time.Second); err != nil {
		return err
	}

	fmt.Println(resp.Response)
	fmt.Fprintf(os.Stderr, "\n[supportctl] answered in %.2fs\n", resp.ResponseTime)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	fmt.Println("Chatting with Aven support. Type \"exit\" to quit.")

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}

		var resp ChatResponse
		if err := postJSON("/chat", ChatRequest{Message: message, SessionID: sessionID}, &resp, 120*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Println(resp.Response)
	}
	return scanner.Err()
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	fmt.Printf("Agent Available: %t\n", healthResp.AgentAvailable)
	fmt.Printf("Voice Available: %t\n", healthResp.VapiAvailable)
	fmt.Printf("Active Sessions: %d\n", healthResp.ActiveSessions)
	fmt.Printf("Active Calls: %d\n", healthResp.ActiveVapiCalls)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	embedCache, err := cache.New[[]float32]("embeddings", cfg.Cache.EmbeddingCapacity)
	if err != nil {
		return fmt.Errorf("creating embedding cache: %w", err)
	}
	embedder, err := embeddings.New(cfg.Embeddings, embedCache)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	index, err := vectorstore.NewQdrantIndex(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("connecting to vector index: %w", err)
	}
	defer func() {
		_ = index.Close()
	}()

	pipeline := ingest.New(embedder, index, cfg.Ingest, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var stats ingest.Stats
	if sitemapURL != "" {
		stats, err = pipeline.RunSitemap(ctx, sitemapURL)
	} else {
		stats, err = pipeline.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// postJSON POSTs a JSON body to the server and decodes the response.
func postJSON(path string, body, out interface{}, timeout time.Duration) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
