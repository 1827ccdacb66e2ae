package openai

// Config contains OpenAI embedding client configuration.
type Config struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"         envDefault:"https://api.openai.com/v1"`
	Model   string `env:"INCANT_EMBEDDING_MODEL"  envDefault:"text-embedding-3-small"`
}
