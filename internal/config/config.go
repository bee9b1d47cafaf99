package config

import "time"

// Config represents the complete webtriage configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Context  ContextConfig  `yaml:"context"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Auth     AuthConfig     `yaml:"auth_manager"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Paths    PathsConfig    `yaml:"paths"`

	// TasksFile points at the task list, one "name: description" per line.
	TasksFile string `yaml:"tasks_file"`

	Meta MetaConfig `yaml:"meta"`
}

// BrowserConfig holds browser launch parameters.
type BrowserConfig struct {
	Headless        *bool    `yaml:"headless"`
	UseTestProfile  bool     `yaml:"use_test_profile"`
	TestProfileName string   `yaml:"test_profile_name"`
	ExtraArgs       []string `yaml:"extra_browser_args,omitempty"`
}

// IsHeadless reports the effective headless setting. A config that never
// mentions headless gets the headless default rather than zero-value false.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// ContextConfig holds browser context / page parameters.
type ContextConfig struct {
	UserAgent       string   `yaml:"user_agent,omitempty"`
	AllowedDomains  []string `yaml:"allowed_domains,omitempty"`
	DisableSecurity bool     `yaml:"disable_security"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"` // override the provider's base URL
}

// AgentConfig holds agent loop parameters.
type AgentConfig struct {
	MaxSteps          int  `yaml:"max_steps"`
	MaxFailures       int  `yaml:"max_failures"`
	RetryDelaySec     int  `yaml:"retry_delay"`
	UseVision         bool `yaml:"use_vision"`
	MaxActionsPerStep int  `yaml:"max_actions_per_step"`
}

// AuthConfig controls session persistence and interactive login.
type AuthConfig struct {
	EnsureLoggedIn bool       `yaml:"ensure_logged_in"`
	SaveAuthState  bool       `yaml:"save_auth_state"`
	Sites          []SiteAuth `yaml:"sites,omitempty"`
}

// SiteAuth describes the login form of one site. The login flow itself is an
// opaque external service; these selectors are the only site-specific glue.
type SiteAuth struct {
	Name            string `yaml:"name"`
	LoginURL        string `yaml:"login_url"`
	UsernameField   string `yaml:"username_field"`
	PasswordField   string `yaml:"password_field"`
	NextButton      string `yaml:"next_button,omitempty"` // two-phase forms (email first)
	SubmitButton    string `yaml:"submit_button"`
	SuccessSelector string `yaml:"success_selector,omitempty"`
}

// AnalyzerConfig holds trajectory analyzer options.
type AnalyzerConfig struct {
	// CaptureAllActions records every action of a step instead of only the
	// first. Default false for compatibility with existing logs.
	CaptureAllActions bool `yaml:"capture_all_actions"`
}

// PathsConfig holds the artifact directories, relative to the project dir.
type PathsConfig struct {
	Logs        string `yaml:"logs"`
	Screenshots string `yaml:"screenshots"`
	Reports     string `yaml:"reports"`
	AuthRoot    string `yaml:"auth_root"`
}

// MetaConfig holds metadata about the configuration.
type MetaConfig struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// DefaultConfig returns a new config with sensible defaults.
func DefaultConfig() *Config {
	now := time.Now()
	return &Config{
		Browser: BrowserConfig{
			Headless:        boolPtr(true),
			TestProfileName: "test_profile",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-3-7-sonnet-20250219",
			Temperature: 0.0,
			MaxTokens:   1024,
		},
		Agent: AgentConfig{
			MaxSteps:          100,
			MaxFailures:       3,
			RetryDelaySec:     10,
			UseVision:         true,
			MaxActionsPerStep: 10,
		},
		Paths: PathsConfig{
			Logs:        "agent_logs",
			Screenshots: "agent_screenshots",
			Reports:     "bug_reports",
			AuthRoot:    "auth_data",
		},
		TasksFile: "tasks.txt",
		Meta: MetaConfig{
			Version:   "1.0.0",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	case "":
		return NewValidationError("llm.provider is required")
	default:
		return NewValidationError("unsupported llm.provider: " + c.LLM.Provider + " (supported: anthropic, openai)")
	}

	if c.LLM.APIKey == "" {
		return NewValidationError("llm.api_key is required for provider: " + c.LLM.Provider)
	}

	if c.Browser.TestProfileName == "" {
		return NewValidationError("browser.test_profile_name is required")
	}

	if c.Agent.MaxSteps <= 0 {
		return NewValidationError("agent.max_steps must be positive")
	}

	return nil
}

// SiteByName returns the auth configuration for a named site, if present.
func (c *Config) SiteByName(name string) *SiteAuth {
	for i := range c.Auth.Sites {
		if c.Auth.Sites[i].Name == name {
			return &c.Auth.Sites[i]
		}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

func boolPtr(v bool) *bool { return &v }
