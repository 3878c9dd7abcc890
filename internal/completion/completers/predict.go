package completers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// PredictID identifies the PredictProvider.
const PredictID = "predict"

// DefaultPredictItems is the number of predictions requested when
// PredictProviderConfig.MaxItems is zero.
const DefaultPredictItems = 3

// BestPractices contains shell command best practices used in prediction prompts.
const BestPractices = `* Git commit messages should follow conventional commit message format
* Prefer long option names when they make the command clearer`

// PredictProviderConfig holds configuration for creating a PredictProvider.
type PredictProviderConfig struct {
	// Model is the chat model name. An empty model disables the provider.
	Model string

	// BaseURL of an OpenAI compatible API. Empty means the OpenAI default.
	BaseURL string

	// APIKey for the API. Local servers usually accept any value.
	APIKey string

	// MaxItems caps the number of predicted lines. Zero means DefaultPredictItems.
	MaxItems int

	// ContextFunc supplies extra prompt context such as recent history.
	// Optional.
	ContextFunc func() map[string]string

	// Logger for debug output. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// PredictProvider asks a chat model to complete the whole command line.
// It is the slow provider of the set and relies on the reconciliation
// timeout to stay out of the way.
type PredictProvider struct {
	client      *openai.Client
	model       string
	maxItems    int
	contextFunc func() map[string]string
	logger      *zap.Logger
}

// NewPredictProvider creates a new PredictProvider with the given configuration.
func NewPredictProvider(cfg PredictProviderConfig) *PredictProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultPredictItems
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &PredictProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxItems:    maxItems,
		contextFunc: cfg.ContextFunc,
		logger:      logger,
	}
}

func (p *PredictProvider) Identifier() string {
	return PredictID
}

func (p *PredictProvider) IsApplicable(ec *completion.EditorContext) bool {
	return p.model != "" && isShellContext(ec)
}

// predictionResponse is the expected JSON response from the model.
type predictionResponse struct {
	Completions []string `json:"completions"`
}

func (p *PredictProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	start, end, input, ok := lineCompletion(req.Text, req.Offset)
	reply := &completion.Reply{Start: start, End: end, Items: []completion.Item{}}

	if !ok || strings.TrimSpace(input) == "" {
		return reply, nil
	}

	userMessage := fmt.Sprintf(`You are gcomp, a completion engine for an interactive bash shell.
You will be given a partial bash command prefix entered by me, enclosed in <prefix> tags.
You are asked to predict up to %d complete bash commands I might be typing.

# Instructions
* Based on the prefix and other context, analyze my potential intent
* Every prediction must start with the partial command as a prefix
* Every prediction must be a valid, single-line, complete bash command
* Order predictions from most to least likely

# Best Practices
%s

# Latest Context
%s

Respond with JSON in this format: {"completions": ["first prediction", "second prediction"]}

<prefix>%s</prefix>`, p.maxItems, BestPractices, p.formatContext(ec), input)

	p.logger.Debug("prediction request", zap.String("input", input), zap.String("userMessage", userMessage))

	response, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return reply, nil
	}

	content := response.Choices[0].Message.Content
	var prediction predictionResponse
	if err := json.Unmarshal([]byte(content), &prediction); err != nil {
		p.logger.Debug("failed to parse prediction JSON", zap.Error(err), zap.String("content", content))
		return reply, nil
	}

	seen := make(map[string]bool)
	for _, line := range prediction.Completions {
		if len(reply.Items) >= p.maxItems {
			break
		}
		if !strings.HasPrefix(line, input) || line == input || strings.Contains(line, "\n") {
			p.logger.Debug("discarding prediction", zap.String("input", input), zap.String("prediction", line))
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		reply.Items = append(reply.Items, completion.Item{
			Label:      line,
			InsertText: line[start:],
			Type:       "prediction",
			Detail:     p.model,
		})
	}

	return reply, nil
}

func (p *PredictProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return false
}

// formatContext renders the prompt context as labeled sections, sorted by key.
func (p *PredictProvider) formatContext(ec *completion.EditorContext) string {
	contextMap := map[string]string{}
	if p.contextFunc != nil {
		for k, v := range p.contextFunc() {
			contextMap[k] = v
		}
	}
	if ec != nil && ec.WorkingDir != "" {
		contextMap["cwd"] = ec.WorkingDir
	}

	keys := make([]string, 0, len(contextMap))
	for k, v := range contextMap {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var result strings.Builder
	for _, k := range keys {
		result.WriteString("## " + k + "\n" + contextMap[k] + "\n\n")
	}
	return result.String()
}
