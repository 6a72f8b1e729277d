package model

import "time"

// ================ Config ================
type ExtractionModelConfig struct {
	Model       string  `envconfig:"EXTRACTION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"EXTRACTION_MAX_TOKENS" default:"200"`
	Temperature float32 `envconfig:"EXTRACTION_TEMPERATURE" default:"0.3"`

	// 0 disables thinking; the token budget above is too small to share.
	ThinkingBudget int32 `envconfig:"EXTRACTION_THINKING_BUDGET" default:"0"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"300"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`

	ThinkingBudget int32 `envconfig:"RESPONSE_THINKING_BUDGET" default:"0"`
}

type ResponsePromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"our company"`
	AgentName    string `envconfig:"PROMPT_AGENT_NAME" default:"Alex"`
}

type KnowledgeConfig struct {
	Limit         int     `envconfig:"KNOWLEDGE_LIMIT" default:"3"`
	SnippetLength int     `envconfig:"KNOWLEDGE_SNIPPET_LENGTH" default:"200"`
	QdrantURL     string  `envconfig:"QDRANT_URL"`
	QdrantAPIKey  string  `envconfig:"QDRANT_API_KEY"`
	Collection    string  `envconfig:"QDRANT_COLLECTION" default:"knowledge"`
	EmbeddingURL  string  `envconfig:"EMBEDDING_API_URL"`
	EmbeddingKey  string  `envconfig:"EMBEDDING_API_KEY"`
	MinScore      float64 `envconfig:"KNOWLEDGE_MIN_SCORE" default:"0"`
}

// Enabled reports whether both the vector store and the embedder are configured.
func (c KnowledgeConfig) Enabled() bool {
	return c.QdrantURL != "" && c.EmbeddingURL != ""
}

type CalendarConfig struct {
	Provider    string        `envconfig:"CALENDAR_PROVIDER" default:"none"`
	CalendarID  string        `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
	AccessToken string        `envconfig:"GOOGLE_CALENDAR_ACCESS_TOKEN"`
	BaseURL     string        `envconfig:"GOOGLE_CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3"`
	LeadTime    time.Duration `envconfig:"MEETING_LEAD_TIME" default:"24h"`
	Duration    time.Duration `envconfig:"MEETING_DURATION" default:"1h"`
	TimeZone    string        `envconfig:"MEETING_TIME_ZONE" default:"UTC"`
	// Used when the customer left no e-mail address.
	FallbackEmail string `envconfig:"MEETING_FALLBACK_EMAIL" default:"customer@example.com"`
}

type SMTPConfig struct {
	Host      string `envconfig:"SMTP_HOST"`
	Port      int    `envconfig:"SMTP_PORT" default:"587"`
	Username  string `envconfig:"SMTP_USERNAME"`
	Password  string `envconfig:"SMTP_PASSWORD"`
	FromEmail string `envconfig:"SMTP_FROM_EMAIL"`
	FromName  string `envconfig:"SMTP_FROM_NAME" default:"Sales Team"`
}

type SchedulingConfig struct {
	// every_request books on each schedule_meeting; first_only books once per lead.
	Policy string `envconfig:"SCHEDULING_POLICY" default:"every_request"`
}

type DispatchConfig struct {
	TurnDelay       time.Duration `envconfig:"TURN_DELAY" default:"2s"`
	TurnTimeout     time.Duration `envconfig:"TURN_TIMEOUT" default:"60s"`
	Queue           string        `envconfig:"DISPATCH_QUEUE" default:"default"`
	Concurrency     int           `envconfig:"DISPATCH_CONCURRENCY" default:"10"`
	DedupeByMessage bool          `envconfig:"DISPATCH_DEDUPE_BY_MESSAGE" default:"true"`
	MeetingMaxRetry int           `envconfig:"MEETING_MAX_RETRY" default:"3"`
	// Inline runs turns in the receiving goroutine and skips the queue.
	Inline bool `envconfig:"DISPATCH_INLINE" default:"false"`
}

type LockConfig struct {
	Backend string        `envconfig:"LOCK_BACKEND" default:"redis"`
	TTL     time.Duration `envconfig:"LOCK_TTL" default:"90s"`
	Wait    time.Duration `envconfig:"LOCK_WAIT" default:"30s"`
}

type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"redis"`
	// Redis only. 0 keeps records forever.
	TTL time.Duration `envconfig:"STORE_TTL" default:"0"`
}
