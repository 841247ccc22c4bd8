package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/config"
)

const historyLimit = 10

type turn struct {
	user      string
	assistant string
}

// Service answers webhook calls with an LLM. It backs the built-in
// development webhook so the widget can be tried without an external
// automation platform.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string

	mu      sync.Mutex
	history map[string][]turn
}

// NewService creates the Ark chat model described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.SystemPrompt)
}

// NewServiceWithModel builds the prompt chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain:        runnable,
		systemPrompt: systemPrompt,
		history:      make(map[string][]turn),
	}, nil
}

// Reply generates an answer for message, remembering the last few turns of
// the session.
func (s *Service) Reply(ctx context.Context, sessionID, message string) (string, error) {
	input := map[string]any{
		"system":  s.systemPrompt,
		"history": s.historyMessages(sessionID),
		"query":   message,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.remember(sessionID, turn{user: message, assistant: response.Content})
	log.Info().Str("component", "ai").Str("session", sessionID).Int("length", len(response.Content)).Msg("generated reply")
	return response.Content, nil
}

func (s *Service) historyMessages(sessionID string) []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.history[sessionID]
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns)*2)
	for _, t := range turns {
		history = append(history, schema.UserMessage(t.user), schema.AssistantMessage(t.assistant, nil))
	}
	return history
}

func (s *Service) remember(sessionID string, t turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.history[sessionID], t)
	if len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}
	s.history[sessionID] = turns
}
