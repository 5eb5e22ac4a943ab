//go:build bedrock

package main

import (
	"log/slog"

	"nimbus-ai/internal/adapter/llm"
	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/config"
)

func createBedrockProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	return llm.NewBedrockProvider(pc, log)
}
