package analyzer

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts the OpenAI chat completion API to the
// CompletionClient interface. It speaks to api.openai.com by default
// and to an Azure OpenAI deployment when an endpoint is configured.
type OpenAIClient struct {
	client *openai.Client
}

type OpenAIConfig struct {
	APIKey string
	// Endpoint switches the client to an Azure OpenAI resource when set.
	Endpoint string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	var clientCfg openai.ClientConfig
	if cfg.Endpoint != "" {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(clientCfg)}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
