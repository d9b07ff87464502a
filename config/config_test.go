package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "general:\n  debug: true\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.General.Debug {
		t.Fatal("file value not applied")
	}
	if cfg.Research.DepthQueries["standard"] != 5 {
		t.Fatalf("depth_queries.standard = %d, want default 5", cfg.Research.DepthQueries["standard"])
	}
	if cfg.Storage.Vector.Driver != "pgvector" {
		t.Fatalf("vector driver = %q", cfg.Storage.Vector.Driver)
	}
	if len(cfg.Research.Outline) != 4 {
		t.Fatalf("outline = %v", cfg.Research.Outline)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("llm api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Storage.Redis.Host != "redis.internal" {
		t.Fatalf("redis host = %q", cfg.Storage.Redis.Host)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"bad driver":    "storage:\n  vector:\n    driver: cassandra\n",
		"bad overlap":   "research:\n  chunk_size: 100\n  chunk_overlap: 100\n",
		"empty outline": "research:\n  outline: []\n",
		"zero weights":  "research:\n  relevance_weight: 0\n  credibility_weight: 0\n  recency_weight: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "researchd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
