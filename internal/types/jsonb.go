package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*DeliveryEventList)(nil)
	_ driver.Valuer = DeliveryEventList(nil)
	_ sql.Scanner   = (*ProviderCredentials)(nil)
	_ driver.Valuer = ProviderCredentials{}
)

// scanJSONB scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// ---------------------------------------------------------------------------
// DeliveryEventList
// ---------------------------------------------------------------------------

// DeliveryEventList is the ordered event log of a DeliveryTracking row.
type DeliveryEventList []DeliveryEvent

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (l *DeliveryEventList) Scan(value interface{}) error {
	if value == nil {
		*l = DeliveryEventList{}
		return nil
	}
	return scanJSONB(l, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
// A nil list is stored as an empty array so appends in SQL always apply.
func (l DeliveryEventList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]DeliveryEvent(l))
}

// ---------------------------------------------------------------------------
// ProviderCredentials
// ---------------------------------------------------------------------------

// credentialsRecord mirrors ProviderCredentials with plain strings so the
// redacting MarshalJSON on SecretString is bypassed for storage.
type credentialsRecord struct {
	APIKey     string `json:"api_key,omitempty"`
	APISecret  string `json:"api_secret,omitempty"`
	Domain     string `json:"domain,omitempty"`
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Region     string `json:"region,omitempty"`
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (c *ProviderCredentials) Scan(value interface{}) error {
	var rec credentialsRecord
	if err := scanJSONB(&rec, value); err != nil {
		return err
	}
	*c = ProviderCredentials{
		APIKey:     SecretString(rec.APIKey),
		APISecret:  SecretString(rec.APISecret),
		Domain:     rec.Domain,
		AccountSID: rec.AccountSID,
		AuthToken:  SecretString(rec.AuthToken),
		Username:   rec.Username,
		Password:   SecretString(rec.Password),
		Host:       rec.Host,
		Port:       rec.Port,
		Region:     rec.Region,
	}
	return nil
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
// Note: This writes the raw secrets. API responses go through MarshalJSON,
// which redacts them.
func (c ProviderCredentials) Value() (driver.Value, error) {
	return json.Marshal(credentialsRecord{
		APIKey:     c.APIKey.Unmask(),
		APISecret:  c.APISecret.Unmask(),
		Domain:     c.Domain,
		AccountSID: c.AccountSID,
		AuthToken:  c.AuthToken.Unmask(),
		Username:   c.Username,
		Password:   c.Password.Unmask(),
		Host:       c.Host,
		Port:       c.Port,
		Region:     c.Region,
	})
}
