package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrMissingCredential is returned when a required API key is absent
var ErrMissingCredential = errors.New("missing credential")

// Credential identifies an external service key a command depends on
type Credential int

const (
	// CredentialEmbedding is the embedding service key (HF_TOKEN, or GEMINI_API_KEY for gemini)
	CredentialEmbedding Credential = iota
	// CredentialGeneration is the generation service key (GEMINI_API_KEY)
	CredentialGeneration
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints. Credentials are checked separately by
// RequireCredentials because not every command needs them.
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// RequireCredentials fails when any credential in needs is missing.
// The local embedding provider needs no credential.
func (c *Config) RequireCredentials(needs ...Credential) error {
	var missing []string
	for _, need := range needs {
		switch need {
		case CredentialEmbedding:
			if c.Embedding.Provider == "local" || c.EmbeddingAPIKey() != "" {
				continue
			}
			if c.Embedding.Provider == "gemini" {
				missing = append(missing, "GEMINI_API_KEY")
			} else {
				missing = append(missing, "HF_TOKEN")
			}
		case CredentialGeneration:
			if c.LLM.APIKey == "" {
				missing = append(missing, "GEMINI_API_KEY")
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(dedupe(missing), ", "))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
