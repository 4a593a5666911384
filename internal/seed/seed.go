// Package seed fills a repository registry with the template catalog,
// provider configs derived from the environment and, optionally, a fake
// customer calendar for demos.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"lawncare/internal/config"
	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

// Services offered on the demo calendar.
var Services = []string{
	"Lawn Mowing",
	"Hedge Trimming",
	"Leaf Removal",
	"Fertilization",
	"Aeration",
	"Weed Control",
	"Mulching",
}

// Work starts are on the hour between 08:00 and 15:00.
var startTimes = []string{"08:00", "09:00", "10:00", "11:00", "13:00", "14:00", "15:00"}

// Stable IDs for the configs written by Providers so reruns overwrite
// instead of piling up duplicates.
const (
	EmailProviderID = "env-sendgrid"
	SMSProviderID   = "env-twilio"
)

// Options controls Demo.
type Options struct {
	Customers    int
	Appointments int
	// Days is the width of the calendar starting today.
	Days int
	// Seed makes the fake data reproducible. Zero picks a random seed.
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.Customers <= 0 {
		o.Customers = 12
	}
	if o.Appointments <= 0 {
		o.Appointments = 30
	}
	if o.Days <= 0 {
		o.Days = 14
	}
	return o
}

// Result summarizes what a seeding run wrote.
type Result struct {
	Templates    int `json:"templates"`
	Providers    int `json:"providers"`
	Customers    int `json:"customers"`
	Appointments int `json:"appointments"`
}

// Seeder writes seed data through the repository interfaces, so the same
// code fills the in-memory store and Postgres.
type Seeder struct {
	repos  types.RepositoryRegistry
	clock  types.Clock
	logger *slog.Logger
}

func New(repos types.RepositoryRegistry, clock types.Clock, logger *slog.Logger) *Seeder {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{repos: repos, clock: clock, logger: logger.With("component", "seed")}
}

// Templates stores the built-in catalog, leaving edited templates alone.
func (s *Seeder) Templates(ctx context.Context) (int, error) {
	n, err := template.Seed(ctx, s.repos.Templates(), s.clock.Now())
	if err != nil {
		return n, fmt.Errorf("seeding templates: %w", err)
	}
	return n, nil
}

// Providers writes a default SendGrid and Twilio config for every vendor
// whose credentials are present in cfg. With stub set, placeholder configs
// are written instead so a local run can dispatch through the log-only
// senders.
func (s *Seeder) Providers(ctx context.Context, cfg config.ProvidersConfig, stub bool) (int, error) {
	now := s.clock.Now()
	var configs []types.ProviderConfig

	if !cfg.SendGridAPIKey.IsEmpty() || stub {
		key := cfg.SendGridAPIKey
		if key.IsEmpty() {
			key = "SG.local-stub"
		}
		configs = append(configs, types.ProviderConfig{
			ID:          EmailProviderID,
			Name:        "SendGrid",
			Channel:     types.ChannelEmail,
			Type:        types.ProviderSendGrid,
			Credentials: types.ProviderCredentials{APIKey: key},
			FromEmail:   cfg.EmailFromAddress,
			FromName:    cfg.EmailFromName,
			IsDefault:   true,
			Enabled:     true,
		})
	}

	if (cfg.TwilioAccountSID != "" && !cfg.TwilioAuthToken.IsEmpty() && cfg.TwilioFromNumber != "") || stub {
		creds := types.ProviderCredentials{AccountSID: cfg.TwilioAccountSID, AuthToken: cfg.TwilioAuthToken}
		from := cfg.TwilioFromNumber
		if creds.AccountSID == "" {
			creds = types.ProviderCredentials{AccountSID: "AC-local-stub", AuthToken: "local-stub"}
		}
		if from == "" {
			from = "+15555550100"
		}
		configs = append(configs, types.ProviderConfig{
			ID:          SMSProviderID,
			Name:        "Twilio",
			Channel:     types.ChannelSMS,
			Type:        types.ProviderTwilio,
			Credentials: creds,
			FromNumber:  from,
			IsDefault:   true,
			Enabled:     true,
		})
	}

	for i := range configs {
		c := &configs[i]
		existing, err := s.repos.ProviderConfigs().Get(ctx, c.ID)
		switch {
		case err == nil:
			c.CreatedAt = existing.CreatedAt
		case types.IsNotFound(err):
			c.CreatedAt = now
		default:
			return i, err
		}
		c.UpdatedAt = now
		if err := s.repos.ProviderConfigs().Upsert(ctx, c); err != nil {
			return i, fmt.Errorf("seeding provider %s: %w", c.ID, err)
		}
	}
	return len(configs), nil
}

// Demo writes fake customers with preferences and a calendar of scheduled
// appointments spread over the next opts.Days days. A few past
// appointments are marked completed so listings are not uniform.
func (s *Seeder) Demo(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(s.clock.Now().UnixNano())
	}
	faker := gofakeit.New(seed)

	customers := make([]customer, 0, opts.Customers)
	for i := 0; i < opts.Customers; i++ {
		c := fakeCustomer(faker)
		pref := types.DefaultNotificationPreference(c.ID)
		// Roughly a third also take texts; a few opt out of email.
		pref.SMS = faker.Number(1, 3) == 1
		if faker.Number(1, 10) == 1 {
			pref.Email = false
			pref.SMS = true
		}
		pref.UpdatedAt = s.clock.Now()
		if err := s.repos.Preferences().Upsert(ctx, &pref); err != nil {
			return Result{}, fmt.Errorf("seeding preferences for %s: %w", c.ID, err)
		}
		customers = append(customers, c)
	}

	today := types.DateOf(s.clock.Now())
	created := 0
	for i := 0; i < opts.Appointments; i++ {
		c := customers[faker.Number(0, len(customers)-1)]
		offset := faker.Number(-2, opts.Days)
		status := types.AppointmentScheduled
		if offset < 0 {
			status = types.AppointmentCompleted
		}
		a := types.Appointment{
			ID:              uuid.NewString(),
			CustomerID:      c.ID,
			CustomerName:    c.Name,
			CustomerEmail:   c.Email,
			CustomerPhone:   c.Phone,
			Date:            today.AddDays(offset),
			Time:            startTimes[faker.Number(0, len(startTimes)-1)],
			DurationMinutes: 30 * faker.Number(1, 6),
			Service:         Services[faker.Number(0, len(Services)-1)],
			Status:          status,
			Address:         c.Address,
		}
		if faker.Number(1, 4) == 1 {
			a.Notes = faker.Sentence(6)
		}
		if err := s.repos.Appointments().Create(ctx, &a); err != nil {
			return Result{}, fmt.Errorf("seeding appointment: %w", err)
		}
		created++
	}

	s.logger.Info("demo data seeded",
		"customers", len(customers),
		"appointments", created,
		"seed", seed,
	)
	return Result{Customers: len(customers), Appointments: created}, nil
}

// All runs Templates, Providers and, when demo is set, Demo.
func (s *Seeder) All(ctx context.Context, cfg config.ProvidersConfig, stub, demo bool, opts Options) (Result, error) {
	var res Result
	var err error
	if res.Templates, err = s.Templates(ctx); err != nil {
		return res, err
	}
	if res.Providers, err = s.Providers(ctx, cfg, stub); err != nil {
		return res, err
	}
	if !demo {
		return res, nil
	}
	d, err := s.Demo(ctx, opts)
	if err != nil {
		return res, err
	}
	res.Customers, res.Appointments = d.Customers, d.Appointments
	return res, nil
}

type customer struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
}

func fakeCustomer(f *gofakeit.Faker) customer {
	first, last := f.FirstName(), f.LastName()
	return customer{
		ID:    "cust-" + uuid.NewString()[:8],
		Name:  first + " " + last,
		Email: strings.ToLower(first+"."+last) + "@" + f.DomainName(),
		Phone: "+1" + f.Phone(),
		Address: fmt.Sprintf("%s, %s, %s %s",
			f.Street(), f.City(), f.StateAbr(), f.Zip()),
	}
}
