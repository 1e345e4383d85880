package config

// ProviderCredentials holds the secrets and endpoints for one payment
// provider integration.
type ProviderCredentials struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	WebhookSecret  string
	CallbackToken  string
	ShortCode      string
}

// DisbursementConfig is the explicit configuration for the disbursement
// engine, passed in at construction instead of read from global settings.
type DisbursementConfig struct {
	PlatformFeePercentage float64
	RetryBaseHours        int
	MaxRetries            int
	ScheduleDelayMinutes  int
	Providers             map[string]ProviderCredentials
}

// LoadDisbursementConfig builds the disbursement configuration from the
// environment.
func LoadDisbursementConfig() DisbursementConfig {
	return DisbursementConfig{
		PlatformFeePercentage: GetFloatEnv("PLATFORM_FEE_PERCENTAGE", 2.5),
		RetryBaseHours:        GetIntEnv("RETRY_BASE_HOURS", 1),
		MaxRetries:            GetIntEnv("DISBURSEMENT_MAX_RETRIES", 3),
		ScheduleDelayMinutes:  GetIntEnv("DISBURSEMENT_DELAY_MINUTES", 30),
		Providers: map[string]ProviderCredentials{
			"mobile_money": {
				BaseURL:       GetEnv("MOMO_BASE_URL", "https://api.momo.example.com"),
				APIKey:        GetEnv("MOMO_API_KEY", ""),
				APISecret:     GetEnv("MOMO_API_SECRET", ""),
				WebhookSecret: GetEnv("MOMO_WEBHOOK_SECRET", ""),
				ShortCode:     GetEnv("MOMO_SHORTCODE", ""),
			},
			"card": {
				APIKey:        GetEnv("STRIPE_SECRET_KEY", ""),
				WebhookSecret: GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			},
			"bank_transfer": {
				BaseURL:       GetEnv("BANK_AGGREGATOR_BASE_URL", "https://api.aggregator.example.com"),
				APIKey:        GetEnv("BANK_AGGREGATOR_API_KEY", ""),
				CallbackToken: GetEnv("BANK_AGGREGATOR_CALLBACK_TOKEN", ""),
			},
		},
	}
}
