package types

import "time"

// ProviderType identifies a concrete email or SMS vendor.
type ProviderType string

const (
	ProviderSendGrid    ProviderType = "sendgrid"
	ProviderMailgun     ProviderType = "mailgun"
	ProviderSMTP        ProviderType = "smtp"
	ProviderSES         ProviderType = "ses"
	ProviderTwilio      ProviderType = "twilio"
	ProviderVonage      ProviderType = "vonage"
	ProviderMessageBird ProviderType = "messagebird"
)

// Channel returns the channel the vendor delivers on, or "" for unknown types.
func (t ProviderType) Channel() Channel {
	switch t {
	case ProviderSendGrid, ProviderMailgun, ProviderSMTP, ProviderSES:
		return ChannelEmail
	case ProviderTwilio, ProviderVonage, ProviderMessageBird:
		return ChannelSMS
	}
	return ""
}

// ProviderCredentials carries every vendor secret. Each vendor reads only
// the fields it needs; see the factory in internal/external.
type ProviderCredentials struct {
	APIKey     SecretString `json:"api_key,omitempty"`
	APISecret  SecretString `json:"api_secret,omitempty"`
	Domain     string       `json:"domain,omitempty"`
	AccountSID string       `json:"account_sid,omitempty"`
	AuthToken  SecretString `json:"auth_token,omitempty"`
	Username   string       `json:"username,omitempty"`
	Password   SecretString `json:"password,omitempty"`
	Host       string       `json:"host,omitempty"`
	Port       int          `json:"port,omitempty"`
	Region     string       `json:"region,omitempty"`
}

// ProviderConfig is a stored vendor configuration for one channel.
// At most one config per channel has IsDefault set.
type ProviderConfig struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Channel     Channel             `json:"channel"`
	Type        ProviderType        `json:"type"`
	Credentials ProviderCredentials `json:"credentials"`
	FromEmail   string              `json:"from_email,omitempty"`
	FromName    string              `json:"from_name,omitempty"`
	FromNumber  string              `json:"from_number,omitempty"`
	IsDefault   bool                `json:"is_default"`
	Enabled     bool                `json:"enabled"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
