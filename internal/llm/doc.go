// Package llm wraps the hosted language model used to write recommendations
// and loads the system prompt that frames every request.
package llm
