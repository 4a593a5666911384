package dispatch

import (
	"context"

	"lawncare/internal/types"
)

// Notifier starts the appointment notification flows. The API uses the
// queued implementation when a notification queue is configured and the
// inline one otherwise.
type Notifier interface {
	ProposeReschedule(ctx context.Context, a types.Appointment, weatherIssue string, option types.RescheduleOption) error
	ConfirmReschedule(ctx context.Context, a types.Appointment, originalDate types.Date) error
	RemindAppointment(ctx context.Context, a types.Appointment) error
}

// InlineNotifier dispatches in the calling request.
type InlineNotifier struct {
	svc *Service
}

func NewInlineNotifier(svc *Service) *InlineNotifier {
	return &InlineNotifier{svc: svc}
}

func (n *InlineNotifier) ProposeReschedule(ctx context.Context, a types.Appointment, weatherIssue string, option types.RescheduleOption) error {
	n.svc.SendWeatherReschedule(ctx, a, weatherIssue, option)
	return nil
}

func (n *InlineNotifier) ConfirmReschedule(ctx context.Context, a types.Appointment, originalDate types.Date) error {
	n.svc.SendRescheduleConfirmation(ctx, a, originalDate)
	return nil
}

func (n *InlineNotifier) RemindAppointment(ctx context.Context, a types.Appointment) error {
	n.svc.SendAppointmentReminder(ctx, a)
	return nil
}

// JobEnqueuer is satisfied by core.JobPublisher.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job types.NotificationJob) error
}

// QueuedNotifier publishes a NotificationJob per flow. The job carries the
// final template variables so the worker never reads the appointment.
type QueuedNotifier struct {
	queue JobEnqueuer
}

func NewQueuedNotifier(queue JobEnqueuer) *QueuedNotifier {
	return &QueuedNotifier{queue: queue}
}

func (n *QueuedNotifier) ProposeReschedule(ctx context.Context, a types.Appointment, weatherIssue string, option types.RescheduleOption) error {
	return n.queue.Enqueue(ctx, appointmentJob(types.KindWeatherReschedule, a,
		WeatherRescheduleVariables(a, weatherIssue, option)))
}

func (n *QueuedNotifier) ConfirmReschedule(ctx context.Context, a types.Appointment, originalDate types.Date) error {
	return n.queue.Enqueue(ctx, appointmentJob(types.KindRescheduleConfirmation, a,
		RescheduleConfirmationVariables(a, originalDate)))
}

func (n *QueuedNotifier) RemindAppointment(ctx context.Context, a types.Appointment) error {
	return n.queue.Enqueue(ctx, appointmentJob(types.KindAppointmentReminder, a, AppointmentVariables(a)))
}

func appointmentJob(kind types.NotificationKind, a types.Appointment, vars map[string]string) types.NotificationJob {
	return types.NotificationJob{
		Kind:          kind,
		CustomerID:    a.CustomerID,
		CustomerName:  a.CustomerName,
		Email:         a.CustomerEmail,
		Phone:         a.CustomerPhone,
		AppointmentID: a.ID,
		Variables:     vars,
	}
}

var (
	_ Notifier = (*InlineNotifier)(nil)
	_ Notifier = (*QueuedNotifier)(nil)
)
