/*
Package config loads and validates the recommender configuration.

Values come from three layers, later ones winning: built-in defaults, an
optional YAML file and environment variables. The file path is taken from
the --config flag or RECOMMENDER_CONFIG.

# Environment Variables

Credentials:
  - HF_TOKEN: Hugging Face key for the huggingface embedding provider
  - GEMINI_API_KEY: Gemini key for generation and the gemini embedding provider

Batch client:
  - API_URL: recommendation endpoint (default: https://rec-engine.onrender.com/recommend)

Everything else uses the RECOMMENDER_ prefix, for example
RECOMMENDER_INDEX_DIR, RECOMMENDER_INDEX_BACKEND, RECOMMENDER_EMBEDDING_PROVIDER,
RECOMMENDER_ADDR and RECOMMENDER_LOG_LEVEL. Unknown variables are ignored.

# Validation

Field constraints are expressed as validator tags and checked by Load.
Credentials are checked per command with RequireCredentials: index needs the
embedding key, serve and mcp need both keys, batch needs neither.
*/
package config
