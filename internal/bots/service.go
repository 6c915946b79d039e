package bots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medintake/intake-ai-platform/internal/openmic"
	"github.com/medintake/intake-ai-platform/internal/reconcile"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// providerAPI is the slice of the provider client the service needs.
type providerAPI interface {
	CreateBot(ctx context.Context, req openmic.BotRequest) (*openmic.Bot, error)
	UpdateBot(ctx context.Context, botID string, req openmic.BotRequest) (*openmic.Bot, error)
	DeleteBot(ctx context.Context, botID string) error
	GetBot(ctx context.Context, botID string) (*openmic.Bot, error)
}

// Service keeps the provider's bot registry and the local mirror consistent.
// Writes go provider-first; when the local mirror write fails afterwards, a
// reconcile task is queued instead of rolling back the provider.
type Service struct {
	repo     Repository
	cache    *Cache
	provider providerAPI
	queue    reconcile.Queue
	baseURL  string
	logger   *logging.Logger
}

var _ reconcile.Resolver = (*Service)(nil)

// NewService wires the mirror service. cache and queue may be nil; without a
// queue, mirror failures are only logged.
func NewService(repo Repository, cache *Cache, provider providerAPI, queue reconcile.Queue, publicBaseURL string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		provider: provider,
		queue:    queue,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		logger:   logger.WithComponent("bots"),
	}
}

// Create provisions the bot with the provider, then mirrors it locally.
func (s *Service) Create(ctx context.Context, req *CreateBotRequest) (*Bot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	providerBot, err := s.provider.CreateBot(ctx, providerRequest(req))
	if err != nil {
		return nil, fmt.Errorf("bots: provider create: %w", err)
	}

	bot := &Bot{
		ID:               uuid.NewString(),
		ProviderID:       providerBot.UID,
		Name:             req.Name,
		Description:      req.Description,
		Domain:           req.Domain,
		Prompt:           req.Prompt,
		FirstMessage:     req.FirstMessage,
		IsActive:         true,
		WebhookURLs:      s.webhookURLs(),
		Settings:         req.Settings,
		PostCallSettings: req.PostCallSettings,
	}
	if err := s.repo.Create(ctx, bot); err != nil {
		// The provider bot exists; never roll it back. Queue a repair so
		// the mirror converges.
		s.logger.Error("bot mirror insert failed", "provider_bot_id", providerBot.UID, "error", err)
		s.enqueueRepair(ctx, reconcile.OpSyncMirror, providerBot.UID, "mirror insert failed: "+err.Error())
	}
	if err := s.cache.Put(ctx, bot); err != nil {
		s.logger.Error("bot cache fill failed", "provider_bot_id", bot.ProviderID, "error", err)
	}

	s.logger.Info("bot provisioned", "provider_bot_id", bot.ProviderID, "name", bot.Name)
	return bot, nil
}

// Update edits the provider bot, then the mirror.
func (s *Service) Update(ctx context.Context, providerID string, req *UpdateBotRequest) (*Bot, error) {
	if _, err := s.provider.UpdateBot(ctx, providerID, providerUpdateRequest(req)); err != nil {
		var apiErr *openmic.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("bots: provider update: %w", err)
	}

	bot, err := s.repo.Update(ctx, providerID, req)
	if err != nil {
		if errors.Is(err, ErrBotNotFound) {
			// Provider has the bot but the mirror lost it; repair and
			// report success against the provider state.
			s.enqueueRepair(ctx, reconcile.OpSyncMirror, providerID, "mirror row missing on update")
			return nil, ErrBotNotFound
		}
		s.logger.Error("bot mirror update failed", "provider_bot_id", providerID, "error", err)
		s.enqueueRepair(ctx, reconcile.OpSyncMirror, providerID, "mirror update failed: "+err.Error())
		return nil, fmt.Errorf("bots: mirror update: %w", err)
	}
	if err := s.cache.Invalidate(ctx, providerID); err != nil {
		s.logger.Error("bot cache invalidate failed", "provider_bot_id", providerID, "error", err)
	}
	return bot, nil
}

// Delete removes the provider bot, then the mirror row.
func (s *Service) Delete(ctx context.Context, providerID string) error {
	if err := s.provider.DeleteBot(ctx, providerID); err != nil {
		var apiErr *openmic.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			// Provider already forgot it; still clean up the mirror.
			s.logger.Info("provider bot already deleted", "provider_bot_id", providerID)
		} else {
			return fmt.Errorf("bots: provider delete: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, providerID); err != nil && !errors.Is(err, ErrBotNotFound) {
		s.logger.Error("bot mirror delete failed", "provider_bot_id", providerID, "error", err)
		s.enqueueRepair(ctx, reconcile.OpDeleteMirror, providerID, "mirror delete failed: "+err.Error())
	}
	if err := s.cache.Invalidate(ctx, providerID); err != nil {
		s.logger.Error("bot cache invalidate failed", "provider_bot_id", providerID, "error", err)
	}
	return nil
}

// Get reads through the cache.
func (s *Service) Get(ctx context.Context, providerID string) (*Bot, error) {
	if cached, err := s.cache.Get(ctx, providerID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.logger.Error("bot cache read failed", "provider_bot_id", providerID, "error", err)
	}

	bot, err := s.repo.GetByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, bot); err != nil {
		s.logger.Error("bot cache fill failed", "provider_bot_id", providerID, "error", err)
	}
	return bot, nil
}

// List returns all mirrored bots.
func (s *Service) List(ctx context.Context) ([]*Bot, error) {
	return s.repo.List(ctx)
}

// Resolve applies a queued mirror repair. Implements reconcile.Resolver.
func (s *Service) Resolve(ctx context.Context, task reconcile.Task) error {
	switch task.Op {
	case reconcile.OpDeleteMirror:
		if err := s.repo.Delete(ctx, task.ProviderBotID); err != nil && !errors.Is(err, ErrBotNotFound) {
			return err
		}
		return s.cache.Invalidate(ctx, task.ProviderBotID)

	case reconcile.OpSyncMirror:
		providerBot, err := s.provider.GetBot(ctx, task.ProviderBotID)
		if err != nil {
			var apiErr *openmic.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
				// The provider no longer has it; converge by deleting.
				if delErr := s.repo.Delete(ctx, task.ProviderBotID); delErr != nil && !errors.Is(delErr, ErrBotNotFound) {
					return delErr
				}
				return s.cache.Invalidate(ctx, task.ProviderBotID)
			}
			return err
		}

		bot := s.mirrorOf(ctx, providerBot)
		if err := s.repo.Upsert(ctx, bot); err != nil {
			return err
		}
		return s.cache.Invalidate(ctx, task.ProviderBotID)
	}
	return fmt.Errorf("bots: unsupported reconcile op %q", task.Op)
}

// mirrorOf maps the provider's bot onto a mirror row, preserving the
// mirror-only fields of any existing row.
func (s *Service) mirrorOf(ctx context.Context, providerBot *openmic.Bot) *Bot {
	bot := &Bot{
		ID:          uuid.NewString(),
		ProviderID:  providerBot.UID,
		Domain:      DomainMedical,
		IsActive:    true,
		WebhookURLs: s.webhookURLs(),
	}
	if existing, err := s.repo.GetByProviderID(ctx, providerBot.UID); err == nil {
		bot.ID = existing.ID
		bot.Description = existing.Description
		bot.Domain = existing.Domain
		bot.IsActive = existing.IsActive
		bot.PostCallSettings = existing.PostCallSettings
		bot.CreatedAt = existing.CreatedAt
	}
	bot.Name = providerBot.Name
	bot.Prompt = providerBot.Prompt
	bot.FirstMessage = providerBot.FirstMessage
	bot.Settings.Voice = providerBot.Voice
	bot.Settings.Language = providerBot.Language
	if cs := providerBot.CallSettings; cs != nil {
		bot.Settings.MaxCallDuration = cs.MaxCallDuration
		bot.Settings.SilenceTimeoutMessage = cs.SilenceTimeoutMessage
		bot.Settings.HIPAACompliance = cs.HIPAACompliance
	}
	return bot
}

func (s *Service) enqueueRepair(ctx context.Context, op reconcile.Op, providerID, reason string) {
	if s.queue == nil {
		return
	}
	task := reconcile.NewTask(op, providerID, reason)
	body, err := task.Encode()
	if err != nil {
		s.logger.Error("failed to encode reconcile task", "provider_bot_id", providerID, "error", err)
		return
	}
	if err := s.queue.Send(ctx, body); err != nil {
		s.logger.Error("failed to enqueue reconcile task", "provider_bot_id", providerID, "error", err)
		return
	}
	s.logger.Info("reconcile task queued", "op", string(op), "provider_bot_id", providerID)
}

func (s *Service) webhookURLs() WebhookURLs {
	if s.baseURL == "" {
		return WebhookURLs{}
	}
	return WebhookURLs{
		PreCall:      s.baseURL + "/api/webhooks/pre-call",
		FunctionCall: s.baseURL + "/api/webhooks/in-call",
		PostCall:     s.baseURL + "/api/webhooks/post-call",
	}
}

func providerRequest(req *CreateBotRequest) openmic.BotRequest {
	return openmic.BotRequest{
		Name:         req.Name,
		Prompt:       req.Prompt,
		FirstMessage: req.FirstMessage,
		Voice:        req.Settings.Voice,
		Language:     req.Settings.Language,
		CallSettings: &openmic.CallSettings{
			MaxCallDuration:       req.Settings.MaxCallDuration,
			SilenceTimeoutMessage: req.Settings.SilenceTimeoutMessage,
			HIPAACompliance:       req.Settings.HIPAACompliance,
		},
		PostCallSettings: &openmic.PostCallSettings{
			SummaryPrompt:              req.PostCallSettings.SummaryPrompt,
			StructuredExtractionPrompt: req.PostCallSettings.ExtractionPrompt,
			StructuredExtractionSchema: req.PostCallSettings.ExtractionSchema,
		},
	}
}

func providerUpdateRequest(req *UpdateBotRequest) openmic.BotRequest {
	out := openmic.BotRequest{}
	if req.Name != nil {
		out.Name = *req.Name
	}
	if req.Prompt != nil {
		out.Prompt = *req.Prompt
	}
	if req.FirstMessage != nil {
		out.FirstMessage = *req.FirstMessage
	}
	if req.Settings != nil {
		out.Voice = req.Settings.Voice
		out.Language = req.Settings.Language
		out.CallSettings = &openmic.CallSettings{
			MaxCallDuration:       req.Settings.MaxCallDuration,
			SilenceTimeoutMessage: req.Settings.SilenceTimeoutMessage,
			HIPAACompliance:       req.Settings.HIPAACompliance,
		}
	}
	if req.PostCallSettings != nil {
		out.PostCallSettings = &openmic.PostCallSettings{
			SummaryPrompt:              req.PostCallSettings.SummaryPrompt,
			StructuredExtractionPrompt: req.PostCallSettings.ExtractionPrompt,
			StructuredExtractionSchema: req.PostCallSettings.ExtractionSchema,
		}
	}
	return out
}
