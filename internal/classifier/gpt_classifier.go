package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

type gptResponse struct {
	Category string `json:"category"`
}

// GPTClassifier asks a chat model for the category and falls back to another
// classifier when the call fails or the answer is unusable.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	fallback    Classifier
	logger      *zap.Logger
}

func NewGPTClassifier(config GPTConfig, fallback Classifier, logger *zap.Logger) *GPTClassifier {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if fallback == nil {
		fallback = NewKeywordClassifier()
	}

	return &GPTClassifier{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		fallback:    fallback,
		logger:      logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, text string) models.FeedbackCategory {
	prompt := fmt.Sprintf(`Classify the following feedback about a vehicle registration lookup bot into exactly one category:
- "bug": something is broken or returns wrong data
- "feature_request": the user asks for new functionality
- "praise": the user is happy with the bot
- "general": anything else

Return the response as a JSON object with this structure:
{"category": "one_of_the_categories"}

Feedback: %s`, text)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return c.fallback.Classify(ctx, text)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("GPT response has no choices")
		return c.fallback.Classify(ctx, text)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```")

	var parsed gptResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", content))
		return c.fallback.Classify(ctx, text)
	}

	category := models.FeedbackCategory(strings.ToLower(strings.TrimSpace(parsed.Category)))
	if !category.Valid() {
		c.logger.Warn("GPT returned unknown category", zap.String("category", parsed.Category))
		return c.fallback.Classify(ctx, text)
	}
	return category
}
