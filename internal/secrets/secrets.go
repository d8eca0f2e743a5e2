// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file is one secret: the filename is the key name and the trimmed
// contents are the value.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/Stellven/KBSkills/internal/logger"
)

// Key names recognized by the CLI.
const (
	GeminiAPIKey    = "gemini-api-key"
	OpenAIAPIKey    = "openai-api-key"
	AnthropicAPIKey = "anthropic-api-key"
	LightRAGAPIKey  = "lightrag-api-key"
)

// envFallback maps key names to the environment variables the providers
// document for them.
var envFallback = map[string]string{
	GeminiAPIKey:    "GEMINI_API_KEY",
	OpenAIAPIKey:    "OPENAI_API_KEY",
	AnthropicAPIKey: "ANTHROPIC_API_KEY",
	LightRAGAPIKey:  "LIGHTRAG_API_KEY",
}

// Store holds loaded secrets.
type Store map[string]string

// Load reads all files in dir. A missing directory yields an empty Store.
// Unreadable files are logged and skipped.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, errors.Wrapf(err, "reading secrets directory %s", dir)
	}

	store := make(Store)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.L.WithError(err).WithField("secret", name).Warn("could not read secret")
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			store[name] = value
		}
	}
	return store, nil
}

// Lookup returns the first non-empty value of explicit, the stored secret
// name, and the provider's environment variable.
func (s Store) Lookup(name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := s[name]; v != "" {
		return v
	}
	if env, ok := envFallback[name]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// KeyForProvider returns the secret name holding the API key of an LLM provider.
func KeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return OpenAIAPIKey
	case "anthropic":
		return AnthropicAPIKey
	default:
		return GeminiAPIKey
	}
}

// Save writes value as secret name under dir, creating dir when needed.
// The file is readable by the owner only.
func Save(dir, name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.Errorf("secret %s is empty", name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "creating secrets directory %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value+"\n"), 0o600); err != nil {
		return "", errors.Wrapf(err, "writing secret %s", name)
	}
	return path, nil
}
