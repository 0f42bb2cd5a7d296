package followup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/kv"
	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

var fixedNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type sentMail struct {
	to, subject, body string
}

type mockMailer struct {
	sendFn func(ctx context.Context, to, subject, body string) error
	sent   []sentMail
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, to, subject, body); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type mockMetrics struct {
	metrics.Nop
	followUps int
}

func (m *mockMetrics) RecordFollowUpsSent(count int) { m.followUps += count }

type fixture struct {
	queue   *inquiry.Queue
	mailer  *mockMailer
	metrics *mockMetrics
	events  []notify.Event
	logs    *bytes.Buffer
	job     *Job
}

func newFixture(t *testing.T, seed ...model.Inquiry) *fixture {
	t.Helper()
	f := &fixture{
		queue:   inquiry.NewQueue(kv.NewMemory(), inquiry.DefaultQueueKey),
		mailer:  &mockMailer{},
		metrics: &mockMetrics{},
		logs:    &bytes.Buffer{},
	}
	if err := f.queue.Save(context.Background(), seed); err != nil {
		t.Fatalf("failed to seed queue: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))
	bus := notify.NewBus(logger)
	bus.OnInquiryQueueChanged(func(ev notify.Event) { f.events = append(f.events, ev) })

	f.job = NewJob(f.queue, bus, f.mailer, "dealer@example.com", logger,
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(f.metrics),
	)
	return f
}

func timePtr(t time.Time) *time.Time { return &t }

func inquiryWithFollowUp(id string, status model.InquiryStatus, followUp *time.Time) model.Inquiry {
	return model.Inquiry{
		ID:                     id,
		Listing:                model.ListingSnapshot{ID: 7, Make: "Toyota", Model: "Aqua", Year: 2018, Price: 6250000},
		CustomerName:           "Nimal Perera",
		CustomerEmail:          "nimal@example.com",
		CustomerPhone:          "+94771234567",
		Message:                "Is this car still available?",
		Type:                   model.InquiryTypeTestDrive,
		PreferredContactMethod: model.ContactMethodPhone,
		Status:                 status,
		AdminNotes:             "Wants a Saturday slot",
		FollowUpAt:             followUp,
		CreatedAt:              fixedNow.Add(-72 * time.Hour),
		UpdatedAt:              fixedNow.Add(-72 * time.Hour),
	}
}

func TestDue(t *testing.T) {
	past := timePtr(fixedNow.Add(-time.Hour))
	future := timePtr(fixedNow.Add(time.Hour))

	reminded := inquiryWithFollowUp("r", model.InquiryStatusContacted, past)
	reminded.ReminderSentAt = timePtr(fixedNow.Add(-30 * time.Minute))

	tests := []struct {
		name string
		inq  model.Inquiry
		want bool
	}{
		{"past follow-up", inquiryWithFollowUp("a", model.InquiryStatusContacted, past), true},
		{"exactly now", inquiryWithFollowUp("a", model.InquiryStatusPending, timePtr(fixedNow)), true},
		{"future follow-up", inquiryWithFollowUp("a", model.InquiryStatusContacted, future), false},
		{"no follow-up", inquiryWithFollowUp("a", model.InquiryStatusContacted, nil), false},
		{"already reminded", reminded, false},
		{"sold", inquiryWithFollowUp("a", model.InquiryStatusSold, past), false},
		{"cancelled", inquiryWithFollowUp("a", model.InquiryStatusCancelled, past), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Due(tt.inq, fixedNow); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_Run_SendsAndMarksDueInquiries(t *testing.T) {
	f := newFixture(t,
		inquiryWithFollowUp("due", model.InquiryStatusContacted, timePtr(fixedNow.Add(-time.Hour))),
		inquiryWithFollowUp("later", model.InquiryStatusContacted, timePtr(fixedNow.Add(time.Hour))),
		inquiryWithFollowUp("closed", model.InquiryStatusSold, timePtr(fixedNow.Add(-time.Hour))),
	)

	sent, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("mails = %d, want 1", len(f.mailer.sent))
	}
	mail := f.mailer.sent[0]
	if mail.to != "dealer@example.com" {
		t.Errorf("to = %q", mail.to)
	}
	if !strings.Contains(mail.subject, "Toyota 2018 Aqua") {
		t.Errorf("subject = %q", mail.subject)
	}
	for _, want := range []string{"+94771234567", "Wants a Saturday slot", "LKR 6,250,000", "https://wa.me/"} {
		if !strings.Contains(mail.body, want) {
			t.Errorf("body should contain %q:\n%s", want, mail.body)
		}
	}

	saved, _ := f.queue.Load(context.Background())
	for _, inq := range saved {
		marked := inq.ReminderSentAt != nil
		if marked != (inq.ID == "due") {
			t.Errorf("%s: ReminderSentAt = %v", inq.ID, inq.ReminderSentAt)
		}
	}
	if saved[0].ReminderSentAt != nil && !saved[0].ReminderSentAt.Equal(fixedNow) {
		t.Errorf("ReminderSentAt = %v, want %v", saved[0].ReminderSentAt, fixedNow)
	}

	if len(f.events) != 1 || f.events[0].InquiryID != "due" {
		t.Errorf("events = %+v", f.events)
	}
	if f.metrics.followUps != 1 {
		t.Errorf("followUps metric = %d, want 1", f.metrics.followUps)
	}
}

func TestJob_Run_IsIdempotent(t *testing.T) {
	f := newFixture(t, inquiryWithFollowUp("due", model.InquiryStatusContacted, timePtr(fixedNow.Add(-time.Hour))))

	if _, err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	sent, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if sent != 0 || len(f.mailer.sent) != 1 {
		t.Errorf("second run sent = %d, total mails = %d; want 0, 1", sent, len(f.mailer.sent))
	}
}

func TestJob_Run_MailFailureLeavesInquiryUnmarked(t *testing.T) {
	f := newFixture(t,
		inquiryWithFollowUp("a", model.InquiryStatusContacted, timePtr(fixedNow.Add(-time.Hour))),
		inquiryWithFollowUp("b", model.InquiryStatusInProgress, timePtr(fixedNow.Add(-2*time.Hour))),
	)
	f.mailer.sendFn = func(ctx context.Context, to, subject, body string) error {
		if strings.Contains(body, "Status: in_progress") {
			return errors.New("smtp: connection refused")
		}
		return nil
	}

	sent, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}

	saved, _ := f.queue.Load(context.Background())
	for _, inq := range saved {
		if inq.ID == "b" && inq.ReminderSentAt != nil {
			t.Error("failed reminder should not be marked as sent")
		}
	}
	if !strings.Contains(f.logs.String(), "リマインダーメールの送信に失敗しました") {
		t.Errorf("mail failure should be logged, got: %s", f.logs.String())
	}
}

func TestJob_Run_QueueLoadError(t *testing.T) {
	store := kv.NewMemory()
	store.Set(context.Background(), inquiry.DefaultQueueKey, []byte("{broken"))
	queue := inquiry.NewQueue(store, inquiry.DefaultQueueKey)
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	job := NewJob(queue, notify.NewBus(logger), &mockMailer{}, "dealer@example.com", logger)

	if _, err := job.Run(context.Background()); err == nil {
		t.Error("Run() should fail when the queue cannot be read")
	}
}

func TestJob_Start_StopsOnCancel(t *testing.T) {
	f := newFixture(t, inquiryWithFollowUp("due", model.InquiryStatusContacted, timePtr(fixedNow.Add(-time.Hour))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		saved, _ := f.queue.Load(context.Background())
		if len(saved) == 1 && saved[0].ReminderSentAt != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Start() did not run the job immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
