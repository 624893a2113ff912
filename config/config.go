package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	ListenAddr string `json:"listen_addr"`
	Debug      bool   `json:"debug"`

	// LLM backend (openai-compatible)
	LLMModel   string `json:"llm_model"`
	LLMBaseURL string `json:"llm_base_url"`
	LLMAPIKey  string `json:"llm_api_key"`
	MaxTokens  int    `json:"max_tokens"`

	// Remote financial-data service (MCP)
	MCPBaseURL        string `json:"mcp_base_url"`
	MCPInitTimeoutSec int    `json:"mcp_init_timeout_sec"`
	MCPCallTimeoutSec int    `json:"mcp_call_timeout_sec"`
	AuthCacheTTLSec   int    `json:"auth_cache_ttl_sec"`
	ClientName        string `json:"client_name"`
	ClientVersion     string `json:"client_version"`

	// Orchestrator tunables
	MaxParallelTools int `json:"max_parallel_tools"`
	MaxWorkerRounds  int `json:"max_worker_rounds"`
	BatchTimeoutSec  int `json:"batch_timeout_sec"`
	MaxContextTurns  int `json:"max_context_turns"`

	// Web search providers
	GoogleSearchAPIKey string `json:"google_search_api_key"`
	GoogleCSEID        string `json:"google_cse_id"`
	SerpAPIKey         string `json:"serp_api_key"`

	CacheEnabled bool `json:"cache_enabled"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot builds the default config with all paths rooted at dir.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		DataDir:      filepath.Join(dir, "data"),
		DataCacheDir: filepath.Join(dir, "data", "cache"),

		ListenAddr: ":8080",
		Debug:      false,

		LLMModel:   "gpt-4o-mini",
		LLMBaseURL: "",
		MaxTokens:  8192,

		MCPBaseURL:        "https://fi-mcp-service-709038576402.us-central1.run.app/mcp/stream",
		MCPInitTimeoutSec: 10,
		MCPCallTimeoutSec: 15,
		AuthCacheTTLSec:   300,
		ClientName:        "finsage",
		ClientVersion:     "1.0.0",

		MaxParallelTools: 10,
		MaxWorkerRounds:  3,
		BatchTimeoutSec:  30,
		MaxContextTurns:  10,

		CacheEnabled: true,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := os.Getenv("FINSAGE_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("FINSAGE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}

	if val := os.Getenv("MCP_SERVER_URL"); val != "" {
		c.MCPBaseURL = val
	}
	if val := os.Getenv("MCP_INIT_TIMEOUT_SEC"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MCPInitTimeoutSec = v
		}
	}
	if val := os.Getenv("MCP_CALL_TIMEOUT_SEC"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MCPCallTimeoutSec = v
		}
	}
	if val := os.Getenv("AUTH_CACHE_TTL_SEC"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AuthCacheTTLSec = v
		}
	}

	if val := os.Getenv("MAX_PARALLEL_TOOLS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxParallelTools = v
		}
	}
	if val := os.Getenv("MAX_WORKER_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxWorkerRounds = v
		}
	}
	if val := os.Getenv("BATCH_TIMEOUT_SEC"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.BatchTimeoutSec = v
		}
	}
	if val := os.Getenv("MAX_CONTEXT_TURNS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxContextTurns = v
		}
	}

	if val := os.Getenv("GOOGLE_SEARCH_API_KEY"); val != "" {
		c.GoogleSearchAPIKey = val
	}
	if val := os.Getenv("GOOGLE_CSE_ID"); val != "" {
		c.GoogleCSEID = val
	}
	if val := os.Getenv("SERP_API_KEY"); val != "" {
		c.SerpAPIKey = val
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.MCPBaseURL) == "" {
		return fmt.Errorf("mcp_base_url is required")
	}
	if c.MaxParallelTools <= 0 {
		return fmt.Errorf("max_parallel_tools must be positive, got %d", c.MaxParallelTools)
	}
	if c.MaxWorkerRounds <= 0 {
		return fmt.Errorf("max_worker_rounds must be positive, got %d", c.MaxWorkerRounds)
	}
	if c.BatchTimeoutSec <= 0 {
		return fmt.Errorf("batch_timeout_sec must be positive, got %d", c.BatchTimeoutSec)
	}
	if c.MaxContextTurns <= 0 {
		return fmt.Errorf("max_context_turns must be positive, got %d", c.MaxContextTurns)
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
