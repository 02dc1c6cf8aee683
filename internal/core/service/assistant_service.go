package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	historyTurns       = 5
	defaultCallTimeout = 30 * time.Second

	systemPrompt = "You are Mishka, a supportive AI assistant for a mental health platform. " +
		"Provide emotional support, help users navigate the platform, and suggest professional help when appropriate. " +
		"NEVER diagnose or give medical conclusions. Respond in Russian."

	msgMessageRequired  = "Сообщение обязательно для заполнения."
	msgRateLimited      = "Извините, сервис перегружен. Пожалуйста, попробуйте через несколько минут."
	msgAuthMisconfig    = "Извините, проблема с конфигурацией сервиса (неверный API ключ). Пожалуйста, обратитесь к администратору."
	msgQuotaExceeded    = "Извините, превышен лимит запросов. Пожалуйста, попробуйте позже."
	msgModelUnavailable = "Извините, все доступные модели недоступны. Пожалуйста, обратитесь к администратору."
	msgGeneric          = "Извините, произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте снова или обратитесь к специалисту."
)

// FallbackModels are tried in order after the configured model.
var FallbackModels = []string{
	"meta-llama/llama-3.2-3b-instruct:free",
	"google/gemini-flash-1.5:free",
	"microsoft/phi-3-mini-128k-instruct:free",
	"qwen/qwen-2.5-7b-instruct:free",
}

// ApologyFor returns the user-facing text for a failure category.
func ApologyFor(f ProviderFailure) string {
	switch f {
	case FailureTransient:
		return msgRateLimited
	case FailureAuth:
		return msgAuthMisconfig
	case FailureQuota:
		return msgQuotaExceeded
	case FailureModelUnavailable:
		return msgModelUnavailable
	default:
		return msgGeneric
	}
}

type assistantService struct {
	provider    ports.CompletionProvider
	queue       ports.AssessmentQueue
	models      []string
	callTimeout time.Duration
	log         zerolog.Logger
}

// NewAssistantService returns an AssistantService. A nil provider makes every
// call fail with domain.ErrProviderUnavailable; queue may be nil.
func NewAssistantService(provider ports.CompletionProvider, queue ports.AssessmentQueue, preferredModel string, callTimeout time.Duration, log zerolog.Logger) ports.AssistantService {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	models := make([]string, 0, len(FallbackModels)+1)
	if preferredModel != "" {
		models = append(models, preferredModel)
	}
	for _, m := range FallbackModels {
		if m != preferredModel {
			models = append(models, m)
		}
	}
	return &assistantService{
		provider:    provider,
		queue:       queue,
		models:      models,
		callTimeout: callTimeout,
		log:         log,
	}
}

func (s *assistantService) Chat(ctx context.Context, in ports.AssistantInput) (*ports.AssistantReply, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, domain.NewValidationError("message", msgMessageRequired)
	}
	if s.provider == nil {
		return nil, domain.ErrProviderUnavailable
	}

	turns := buildTurns(message, in.History)
	reply, err := s.complete(ctx, turns)
	if err != nil {
		return nil, err
	}

	if in.UserID != "" && s.queue != nil {
		exchange := []domain.ChatTurn{
			{Role: domain.TurnUser, Content: message},
			{Role: domain.TurnAssistant, Content: reply.Text},
		}
		if !s.queue.Enqueue(in.UserID, exchange) {
			s.log.Warn().Str("user_id", in.UserID).Msg("assessment queue full, exchange dropped")
		}
	}
	return reply, nil
}

// complete walks the model list until one returns content. Failures that no
// other model can fix stop the walk early.
func (s *assistantService) complete(ctx context.Context, turns []domain.ChatTurn) (*ports.AssistantReply, error) {
	last := FailureModelUnavailable
	for _, model := range s.models {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("assistant: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		start := time.Now()
		text, err := s.provider.Complete(attemptCtx, model, turns)
		cancel()

		if err != nil {
			last = ClassifyProviderError(err)
			s.log.Warn().Err(err).Str("model", model).Str("failure", last.String()).Dur("elapsed", time.Since(start)).Msg("completion attempt failed")
			if last.Fatal() {
				break
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			last = FailureModelUnavailable
			s.log.Warn().Str("model", model).Msg("empty completion, trying next model")
			continue
		}

		s.log.Info().Str("model", model).Dur("elapsed", time.Since(start)).Msg("completion succeeded")
		return &ports.AssistantReply{Text: text, Model: model}, nil
	}

	s.log.Error().Str("failure", last.String()).Msg("all completion attempts failed")
	return &ports.AssistantReply{Text: ApologyFor(last), Degraded: true}, nil
}

// buildTurns prepends the system prompt and keeps only the most recent history.
func buildTurns(message string, history []domain.ChatTurn) []domain.ChatTurn {
	kept := make([]domain.ChatTurn, 0, len(history))
	for _, t := range history {
		if (t.Role == domain.TurnUser || t.Role == domain.TurnAssistant) && strings.TrimSpace(t.Content) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) > historyTurns {
		kept = kept[len(kept)-historyTurns:]
	}

	turns := make([]domain.ChatTurn, 0, len(kept)+2)
	turns = append(turns, domain.ChatTurn{Role: domain.TurnSystem, Content: systemPrompt})
	turns = append(turns, kept...)
	turns = append(turns, domain.ChatTurn{Role: domain.TurnUser, Content: message})
	return turns
}
