package openmic

// CallSettings tunes the live-call behavior of a provider bot.
type CallSettings struct {
	MaxCallDuration       int    `json:"max_call_duration,omitempty"`
	SilenceTimeoutMessage string `json:"silence_timeout_message,omitempty"`
	HIPAACompliance       bool   `json:"hipaa_compliance_enabled,omitempty"`
}

// PostCallSettings configures provider-side post-call processing.
type PostCallSettings struct {
	SummaryPrompt              string         `json:"summary_prompt,omitempty"`
	StructuredExtractionPrompt string         `json:"structured_extraction_prompt,omitempty"`
	SuccessEvaluationPrompt    string         `json:"success_evaluation_prompt,omitempty"`
	StructuredExtractionSchema map[string]any `json:"structured_extraction_json_schema,omitempty"`
}

// BotRequest is the create/update payload for a provider bot.
type BotRequest struct {
	Name             string            `json:"name,omitempty"`
	Prompt           string            `json:"prompt,omitempty"`
	FirstMessage     string            `json:"first_message,omitempty"`
	Voice            string            `json:"voice,omitempty"`
	Language         string            `json:"language,omitempty"`
	CallSettings     *CallSettings     `json:"call_settings,omitempty"`
	PostCallSettings *PostCallSettings `json:"post_call_settings,omitempty"`
}

// Bot is the provider's representation of a configured calling agent.
type Bot struct {
	UID          string        `json:"uid"`
	Name         string        `json:"name"`
	Prompt       string        `json:"prompt"`
	FirstMessage string        `json:"first_message,omitempty"`
	Voice        string        `json:"voice"`
	Language     string        `json:"language"`
	CallSettings *CallSettings `json:"call_settings,omitempty"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

// InitiateCallRequest starts an outbound phone call through the provider.
type InitiateCallRequest struct {
	BotID       string `json:"bot_id"`
	PhoneNumber string `json:"phone_number"`
	// CustomerID carries the clinic's medical ID so post-call webhooks can
	// correlate the call back to a patient.
	CustomerID string `json:"customer_id,omitempty"`
}

// Call is the provider's view of a call session.
type Call struct {
	ID          string `json:"id"`
	BotID       string `json:"bot_id"`
	PhoneNumber string `json:"phone_number"`
	CustomerID  string `json:"customer_id,omitempty"`
	Status      string `json:"status"`
	Duration    int    `json:"duration"`
	Transcript  string `json:"transcript"`
	CreatedAt   string `json:"created_at"`
	EndedAt     string `json:"ended_at,omitempty"`
}
