package openai

// Config contains OpenAI provider configuration.
// All fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
type Config struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"  envDefault:"https://api.openai.com/v1"`
	Model   string `env:"INCANT_MODEL"     envDefault:"gpt-4o-mini"`
	Timeout int    `env:"OPENAI_TIMEOUT"   envDefault:"60"`
}
