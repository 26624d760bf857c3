package llm

import (
	"context"
	"fmt"

	"jmxgen/internal/logger"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface using OpenAI's API.
type OpenAIClient struct {
	config *Config
	logger *logger.Logger
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(config *Config, log *logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		config: config,
		logger: log,
		client: openai.NewClient(config.APIKey),
	}
}

// Complete implements the actual LLM API call for OpenAI.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: float32(c.config.Temperature),
			MaxTokens:   c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
		},
	)

	if err != nil {
		c.logger.LogLLMInteraction("complete", userPrompt, nil, err)
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	c.logger.LogLLMInteraction("complete", userPrompt, content, nil)
	return content, nil
}
