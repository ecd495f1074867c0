package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const visionPrompt = "Read the characters in this captcha image. " +
	"Reply with the characters only, no punctuation or explanation. " +
	"If the image is unreadable, reply with nothing."

// VisionResolver resolves captchas with a vision-capable chat model over
// an OpenAI-compatible API.
type VisionResolver struct {
	client *openai.Client
	model  string
}

// NewVisionResolver creates a resolver with an explicit base URL. An empty
// baseURL uses the OpenAI default.
func NewVisionResolver(apiKey, baseURL, model string) *VisionResolver {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &VisionResolver{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Resolve sends the image as a base64 data URL and returns the model's
// text. A refusal or blank reply yields "".
func (r *VisionResolver) Resolve(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read captcha image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: visionPrompt,
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens: 32,
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision captcha request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return sanitize(resp.Choices[0].Message.Content), nil
}

// sanitize strips everything a captcha answer cannot contain. Models
// occasionally wrap the answer in quotes or trailing periods.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`.")
	if strings.ContainsAny(s, " \n") {
		// A sentence, not an answer; treat as unreadable.
		return ""
	}
	return s
}
