package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JadsonMattos/vigia-pix/internal/domain/ai"
	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/infra/ai/prompt"
)

// Service classifies objectives and compares invoices. Without a client it
// falls back to keyword matching.
type Service struct {
	client ai.Client
	logger *slog.Logger
}

func NewService(client ai.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger.With("component", "ai")}
}

// Enabled reports whether a model is configured.
func (s *Service) Enabled() bool { return s.client != nil }

type classificationReply struct {
	Category   string  `json:"category"`
	MainObject string  `json:"main_object"`
	Location   *string `json:"location"`
}

// Classify implements amendments.Classifier. Model failures degrade to the
// keyword result and are not returned.
func (s *Service) Classify(ctx context.Context, objective string) (amendments.Classification, error) {
	if strings.TrimSpace(objective) == "" {
		return amendments.Classification{}, fmt.Errorf("%w: empty objective", amendments.ErrInvalidInput)
	}
	base := ClassifyByKeywords(objective)
	if s.client == nil {
		return base, nil
	}

	out, err := s.client.Complete(ctx, prompt.ClassificationSystemPrompt(), prompt.ClassificationUserPrompt(objective))
	if err != nil {
		s.logger.Warn("classification via model failed, using keywords", "error", err)
		return base, nil
	}
	var reply classificationReply
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		s.logger.Warn("classification reply is not json, using keywords", "error", err)
		return base, nil
	}

	res := base
	res.Source = "openai"
	if c, ok := knownCategory(reply.Category); ok {
		res.Category = c
	}
	if m := strings.TrimSpace(reply.MainObject); m != "" {
		res.MainObject = m
	}
	if reply.Location != nil && strings.TrimSpace(*reply.Location) != "" {
		res.Location = strings.TrimSpace(*reply.Location)
	}
	return res, nil
}

// CompareItems asks the model whether the purchased items fit the objective.
func (s *Service) CompareItems(ctx context.Context, objective string, items []string) (ai.ItemComparison, error) {
	if s.client == nil {
		return ai.ItemComparison{}, ai.ErrNotConfigured
	}
	out, err := s.client.Complete(ctx, prompt.InvoiceSystemPrompt(), prompt.InvoiceUserPrompt(objective, items))
	if err != nil {
		return ai.ItemComparison{}, err
	}
	var cmp ai.ItemComparison
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		return ai.ItemComparison{}, fmt.Errorf("failed to decode comparison: %w", err)
	}
	if cmp.MatchScore < 0 {
		cmp.MatchScore = 0
	}
	if cmp.MatchScore > 100 {
		cmp.MatchScore = 100
	}
	return cmp, nil
}
