package types

import (
	"fmt"
	"net/mail"
	"regexp"
)

// Validation constraint constants.
const (
	MaxTemplateBodyLength = 10000
	MaxSMSBodyLength      = 1600
	MaxReminderDayOffset  = 90
	MaxRescheduleWindow   = 14
	MinRescheduleScore    = 40
	MaxRescheduleOptions  = 3
)

var phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// ValidateEmailAddress checks that addr is a single bare address.
func ValidateEmailAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return NewAppError(ErrCodeValidationInvalidRecipient, fmt.Sprintf("invalid email address %q", addr), err)
	}
	return nil
}

// ValidatePhoneNumber accepts E.164 numbers with or without the leading "+".
func ValidatePhoneNumber(phone string) error {
	if !phonePattern.MatchString(phone) {
		return NewAppError(ErrCodeValidationInvalidRecipient, fmt.Sprintf("invalid phone number %q", phone), nil)
	}
	return nil
}

// ValidateRecipient checks to against the format the channel expects.
func ValidateRecipient(ch Channel, to string) error {
	switch ch {
	case ChannelEmail:
		return ValidateEmailAddress(to)
	case ChannelSMS:
		return ValidatePhoneNumber(to)
	default:
		return NewAppError(ErrCodeValidationInvalidChannel, fmt.Sprintf("unknown channel %q", ch), nil)
	}
}

// Validate checks that reminder day offsets are positive and bounded.
func (s InvoiceReminderSettings) Validate() error {
	check := func(field string, days []int) error {
		for _, d := range days {
			if d <= 0 || d > MaxReminderDayOffset {
				return NewAppErrorWithDetails(ErrCodeValidationMissingField,
					fmt.Sprintf("%s entries must be between 1 and %d", field, MaxReminderDayOffset), nil,
					map[string]any{"field": field, "value": d})
			}
		}
		return nil
	}
	if err := check("days_before_due", s.DaysBeforeDue); err != nil {
		return err
	}
	return check("days_after_due", s.DaysAfterDue)
}
