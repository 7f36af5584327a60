package perception

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/scene"
)

// =============================================================================
// GEMINI CLIENT
// =============================================================================

// ClientOptions configures the Gemini API client.
type ClientOptions struct {
	APIKey string

	// BaseURL overrides the API endpoint. Empty means the public endpoint.
	BaseURL string

	HTTPClient *http.Client
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, opts ClientOptions) (*genai.Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// =============================================================================
// GEMINI SESSION
// =============================================================================

// GeminiConfig configures a chat session.
type GeminiConfig struct {
	Model        string
	SystemPrompt string
	Declarations []*genai.FunctionDeclaration

	// Temperature 0 leaves the model default in place.
	Temperature float32

	// Timeout bounds one Send. Zero means no extra bound.
	Timeout time.Duration

	Logger *zap.Logger
}

// GeminiSession is a Session backed by a Gemini chat. The chat keeps the
// conversation history between turns.
type GeminiSession struct {
	model   string
	chat    *genai.Chat
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiSession starts a chat with an empty history.
func NewGeminiSession(ctx context.Context, client *genai.Client, cfg GeminiConfig) (*GeminiSession, error) {
	genCfg := &genai.GenerateContentConfig{}
	if cfg.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}
	if len(cfg.Declarations) > 0 {
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: cfg.Declarations}}
	}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(cfg.Temperature)
	}

	chat, err := client.Chats.Create(ctx, cfg.Model, genCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Get(logging.CategoryPerception).Zap()
	}
	return &GeminiSession{model: cfg.Model, chat: chat, timeout: cfg.Timeout, logger: logger}, nil
}

// Send submits message to the chat and returns its function calls.
func (s *GeminiSession) Send(ctx context.Context, message string) ([]scene.ToolCall, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("gemini %s request: %d bytes", s.model, len(message))
	resp, err := s.chat.SendMessage(ctx, *genai.NewPartFromText(message))
	if err != nil {
		logging.APIError("gemini %s request failed after %s: %v", s.model, time.Since(start), err)
		s.logger.Warn("Model request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, scene.NewCodedError(scene.ErrModelUnavailable, fmt.Errorf("gemini send: %w", err))
	}

	fcs := resp.FunctionCalls()
	calls := make([]scene.ToolCall, 0, len(fcs))
	for _, fc := range fcs {
		calls = append(calls, scene.ToolCall{ID: fc.ID, Name: fc.Name, Arguments: fc.Args})
	}
	logging.APIDebug("gemini %s response: %d function call(s) in %s", s.model, len(calls), time.Since(start))
	s.logger.Debug("Model replied",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("function_calls", len(calls)))
	return calls, nil
}

// GeminiFactory returns a Factory creating one GeminiSession per
// conversation. Each new session reads the current system prompt from
// prompts; a nil prompts uses cfg.SystemPrompt.
func GeminiFactory(client *genai.Client, cfg GeminiConfig, prompts *PromptSource) Factory {
	return func(ctx context.Context, id string) (Session, error) {
		c := cfg
		if prompts != nil {
			c.SystemPrompt = prompts.Text()
		}
		if c.Logger == nil {
			c.Logger = logging.Get(logging.CategoryPerception).Zap()
		}
		c.Logger = c.Logger.With(zap.String("session", id))
		return NewGeminiSession(ctx, client, c)
	}
}
