package types

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or serialization
// of sensitive values such as vendor API keys and auth tokens. It overrides
// String() and MarshalJSON() to return a redacted placeholder.
//
// Decoding from JSON is unaffected, so API requests can still carry credentials
// in. Use Unmask() to retrieve the raw value when it is genuinely needed
// (HTTP Authorization headers, SMTP auth, database persistence).
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret value is set.
func (s SecretString) IsEmpty() bool {
	return s == ""
}

// IsPlaceholder reports whether s is the redacted placeholder itself, as
// sent back by clients that round-trip a redacted document.
func (s SecretString) IsPlaceholder() bool {
	return s == redactedPlaceholder
}

// Hint returns a display-safe fingerprint of the secret: the last four
// characters prefixed by asterisks. Secrets shorter than eight characters
// are fully masked.
func (s SecretString) Hint() string {
	if s == "" {
		return ""
	}
	if len(s) < 8 {
		return "****"
	}
	return "****" + string(s[len(s)-4:])
}
