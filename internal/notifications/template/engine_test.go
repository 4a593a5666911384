package template

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/memstore"
	"lawncare/internal/types"
)

func greeting() types.NotificationTemplate {
	return types.NotificationTemplate{
		ID:        "greet-email",
		Channel:   types.ChannelEmail,
		Subject:   "Hello {{name}}",
		Body:      "Hi {{name}}, your {{service}} is on {{date}}. Bye {{name}}.",
		Variables: []string{"name", "service", "date"},
	}
}

func TestRender_ReplacesAllOccurrences(t *testing.T) {
	got := Render(greeting(), map[string]string{"name": "Pat", "service": "Mowing", "date": "June 12"})
	assert.Equal(t, "Hello Pat", got.Subject)
	assert.Equal(t, "Hi Pat, your Mowing is on June 12. Bye Pat.", got.Body)
}

func TestRender_MissingVariableLeftVerbatim(t *testing.T) {
	got := Render(greeting(), map[string]string{"name": "Pat"})
	assert.Equal(t, "Hi Pat, your {{service}} is on {{date}}. Bye Pat.", got.Body)
}

func TestRender_CaseSensitiveExactKeys(t *testing.T) {
	tmpl := types.NotificationTemplate{Body: "{{Name}} {{name}} {{ name }}"}
	got := Render(tmpl, map[string]string{"name": "pat"})
	assert.Equal(t, "{{Name}} pat {{ name }}", got.Body)
}

func TestRender_Idempotent(t *testing.T) {
	vars := map[string]string{"name": "Pat", "date": "June 12"}
	first := Render(greeting(), vars)

	again := Render(types.NotificationTemplate{Subject: first.Subject, Body: first.Body}, vars)
	assert.Equal(t, first, again)
}

func TestRender_ValuesAreNotExpanded(t *testing.T) {
	tmpl := types.NotificationTemplate{Body: "{{a}} {{b}}"}
	got := Render(tmpl, map[string]string{"a": "{{b}}", "b": "x"})
	assert.Equal(t, "{{b}} x", got.Body)
}

func TestRender_SMSHasNoSubject(t *testing.T) {
	got := Render(types.NotificationTemplate{Channel: types.ChannelSMS, Body: "hi {{n}}"}, map[string]string{"n": "Pat"})
	assert.Empty(t, got.Subject)
	assert.Equal(t, "hi Pat", got.Body)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "service", "date"}, Placeholders(greeting().Body))
	assert.Empty(t, Placeholders("no placeholders {here}"))
	assert.Equal(t, []string{"a"}, Placeholders("{{a}}{{a}}{{}}"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(greeting(), map[string]string{"name": "Pat", "service": "", "date": "x"}))

	err := Validate(greeting(), map[string]string{"name": "Pat"})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingVariable))

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"service", "date"}, appErr.Details["missing"])
	assert.Contains(t, appErr.Message, "greet-email")
}

func TestValidate_DerivesVariablesWhenUndeclared(t *testing.T) {
	tmpl := greeting()
	tmpl.Variables = nil

	err := Validate(tmpl, map[string]string{"name": "Pat", "service": "Mowing"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"date"}, appErr.Details["missing"])
}

func TestValidateDefinition(t *testing.T) {
	ok := greeting()
	assert.NoError(t, ValidateDefinition(ok))

	tests := []struct {
		name   string
		mutate func(*types.NotificationTemplate)
		code   types.ErrorCode
	}{
		{"no id", func(t *types.NotificationTemplate) { t.ID = " " }, types.ErrCodeValidationMissingField},
		{"bad channel", func(t *types.NotificationTemplate) { t.Channel = "fax" }, types.ErrCodeValidationInvalidChannel},
		{"empty body", func(t *types.NotificationTemplate) { t.Body = "" }, types.ErrCodeValidationMissingField},
		{"email without subject", func(t *types.NotificationTemplate) { t.Subject = "" }, types.ErrCodeValidationMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := greeting()
			tt.mutate(&tmpl)
			assert.True(t, types.HasCode(ValidateDefinition(tmpl), tt.code))
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.Len(t, catalog, 14)

	seen := map[string]bool{}
	for _, tmpl := range catalog {
		assert.False(t, seen[tmpl.ID], "duplicate id %s", tmpl.ID)
		seen[tmpl.ID] = true

		assert.NoError(t, ValidateDefinition(tmpl), tmpl.ID)
		assert.True(t, strings.HasSuffix(tmpl.ID, "-"+string(tmpl.Channel)), tmpl.ID)

		declared := map[string]bool{}
		for _, v := range tmpl.Variables {
			declared[v] = true
		}
		for _, p := range Placeholders(tmpl.Subject + tmpl.Body) {
			assert.True(t, declared[p], "%s uses undeclared {{%s}}", tmpl.ID, p)
		}
	}

	for _, family := range []string{WeatherReschedule, RescheduleConfirmation, AppointmentReminder,
		InvoiceBeforeDue, InvoiceDueToday, InvoiceOverdue3, InvoiceOverdue7} {
		assert.True(t, seen[ID(family, types.ChannelEmail)], family)
		assert.True(t, seen[ID(family, types.ChannelSMS)], family)
	}
}

func TestHTMLBody(t *testing.T) {
	out, err := HTMLBody(Rendered{
		Subject: "Rain <delay>",
		Body:    "Hi Pat,\n\nLine one\nLine two\n\n\n<b>Thanks</b>",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<title>Rain &lt;delay&gt;</title>")
	assert.Contains(t, out, ">Hi Pat,</p>")
	assert.Contains(t, out, "Line one<br>Line two")
	assert.Contains(t, out, "&lt;b&gt;Thanks&lt;/b&gt;")
	assert.Equal(t, 3, strings.Count(out, "<p "))
}

func TestSeed_AddsOnlyMissingTemplates(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New(nil).Templates()

	edited := types.NotificationTemplate{
		ID:      ID(AppointmentReminder, types.ChannelSMS),
		Channel: types.ChannelSMS,
		Body:    "custom {{service}}",
	}
	require.NoError(t, repo.Upsert(ctx, &edited))

	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	added, err := Seed(ctx, repo, now)
	require.NoError(t, err)
	assert.Equal(t, 13, added)

	got, err := repo.Get(ctx, edited.ID)
	require.NoError(t, err)
	assert.Equal(t, "custom {{service}}", got.Body)

	seeded, err := repo.Get(ctx, ID(WeatherReschedule, types.ChannelEmail))
	require.NoError(t, err)
	assert.Equal(t, now, seeded.UpdatedAt)

	added, err = Seed(ctx, repo, now)
	require.NoError(t, err)
	assert.Zero(t, added)
}
