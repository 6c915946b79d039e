package bots

import (
	"strings"
	"time"
)

// Domain scopes what a bot is allowed to talk about.
type Domain string

const (
	DomainMedical      Domain = "medical"
	DomainLegal        Domain = "legal"
	DomainReceptionist Domain = "receptionist"
)

// ValidDomain reports whether d is one of the accepted values.
func ValidDomain(d Domain) bool {
	switch d {
	case DomainMedical, DomainLegal, DomainReceptionist:
		return true
	}
	return false
}

// WebhookURLs are the three lifecycle callbacks registered with the provider.
type WebhookURLs struct {
	PreCall      string `json:"preCall" dynamodbav:"preCall"`
	FunctionCall string `json:"functionCall" dynamodbav:"functionCall"`
	PostCall     string `json:"postCall" dynamodbav:"postCall"`
}

// Settings tunes live-call behavior.
type Settings struct {
	Voice                 string `json:"voice" dynamodbav:"voice"`
	Language              string `json:"language" dynamodbav:"language"`
	MaxCallDuration       int    `json:"maxCallDuration" dynamodbav:"maxCallDuration"`
	SilenceTimeoutMessage string `json:"silenceTimeoutMessage,omitempty" dynamodbav:"silenceTimeoutMessage,omitempty"`
	HIPAACompliance       bool   `json:"hipaaCompliance" dynamodbav:"hipaaCompliance"`
}

// PostCallSettings configures provider-side post-call processing.
type PostCallSettings struct {
	SummaryPrompt    string         `json:"summaryPrompt,omitempty" dynamodbav:"summaryPrompt,omitempty"`
	ExtractionPrompt string         `json:"extractionPrompt,omitempty" dynamodbav:"extractionPrompt,omitempty"`
	ExtractionSchema map[string]any `json:"extractionSchema,omitempty" dynamodbav:"extractionSchema,omitempty"`
}

// Bot mirrors one provider calling agent. ProviderID is the provider's
// identifier and the join key for inbound webhooks; it is unique and
// immutable once assigned.
type Bot struct {
	ID               string           `json:"id" dynamodbav:"id"`
	ProviderID       string           `json:"providerId" dynamodbav:"providerId"`
	Name             string           `json:"name" dynamodbav:"name"`
	Description      string           `json:"description" dynamodbav:"description"`
	Domain           Domain           `json:"domain" dynamodbav:"domain"`
	Prompt           string           `json:"prompt" dynamodbav:"prompt"`
	FirstMessage     string           `json:"firstMessage,omitempty" dynamodbav:"firstMessage,omitempty"`
	IsActive         bool             `json:"isActive" dynamodbav:"isActive"`
	WebhookURLs      WebhookURLs      `json:"webhookUrls" dynamodbav:"webhookUrls"`
	Settings         Settings         `json:"settings" dynamodbav:"settings"`
	PostCallSettings PostCallSettings `json:"postCallSettings" dynamodbav:"postCallSettings"`
	CreatedAt        time.Time        `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt" dynamodbav:"updatedAt"`
}

// CreateBotRequest is the dashboard payload for provisioning a bot.
type CreateBotRequest struct {
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Domain           Domain           `json:"domain"`
	Prompt           string           `json:"prompt"`
	FirstMessage     string           `json:"firstMessage,omitempty"`
	Settings         Settings         `json:"settings"`
	PostCallSettings PostCallSettings `json:"postCallSettings"`
}

// Validate checks the provisioning payload and applies defaults.
func (r *CreateBotRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrMissingPrompt
	}
	if r.Domain == "" {
		r.Domain = DomainMedical
	}
	if !ValidDomain(r.Domain) {
		return ErrInvalidDomain
	}
	if r.Settings.Voice == "" {
		r.Settings.Voice = "alloy"
	}
	if r.Settings.Language == "" {
		r.Settings.Language = "en"
	}
	if r.Settings.MaxCallDuration <= 0 {
		r.Settings.MaxCallDuration = 10 * 60
	}
	return nil
}

// UpdateBotRequest carries partial edits; nil fields are left untouched.
type UpdateBotRequest struct {
	Name             *string           `json:"name,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Prompt           *string           `json:"prompt,omitempty"`
	FirstMessage     *string           `json:"firstMessage,omitempty"`
	IsActive         *bool             `json:"isActive,omitempty"`
	Settings         *Settings         `json:"settings,omitempty"`
	PostCallSettings *PostCallSettings `json:"postCallSettings,omitempty"`
}
