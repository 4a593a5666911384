package core

import "strings"

// RedactEmail masks an email address for safe logging by replacing all but
// the first character of the local part with asterisks. For example,
// "john@gmail.com" becomes "j***@gmail.com".
//
// If the email does not contain an "@" symbol, the entire string is masked
// to prevent accidental PII exposure in logs.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// RedactPhone keeps the last four digits of a phone number, e.g.
// "+15551234567" becomes "***4567". Anything shorter than five characters
// is masked entirely.
func RedactPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if len(phone) < 5 {
		return "***"
	}
	return "***" + phone[len(phone)-4:]
}

// RedactRecipient picks the redaction that fits the address.
func RedactRecipient(to string) string {
	if strings.Contains(to, "@") {
		return RedactEmail(to)
	}
	return RedactPhone(to)
}
