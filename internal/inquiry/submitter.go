package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/autowheel/internal/handoff"
	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

const tracerName = "github.com/hitoshi/autowheel/internal/inquiry"

// EventPublisher は問い合わせキューの変更を通知する。
type EventPublisher interface {
	Publish(ev notify.Event)
}

// HandoffDispatcher は問い合わせを外部チャネルへ引き渡す。戻り値を持たない投げっぱなしの呼び出し。
type HandoffDispatcher interface {
	Dispatch(ctx context.Context, inq model.Inquiry, message string)
}

var (
	_ EventPublisher    = (*notify.Bus)(nil)
	_ HandoffDispatcher = (*handoff.Dispatcher)(nil)
)

// SubmitResult は問い合わせ送信の結果。
// 入力エラーの場合は FieldErrors だけが設定され、何も保存されていない。
type SubmitResult struct {
	Inquiry     *model.Inquiry
	ContactURL  string
	FieldErrors map[string]string
}

// Accepted は問い合わせが保存されたかを返す。
func (r *SubmitResult) Accepted() bool {
	return r.Inquiry != nil
}

// Submitter は問い合わせ送信パイプラインを実行する。
// 検証、キューへの保存、変更通知、外部チャネルへの引き渡しをこの順で行う。
type Submitter struct {
	queue       *Queue
	events      EventPublisher
	handoff     HandoffDispatcher
	destination string
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

// SubmitterOption はSubmitterの設定を変更する。
type SubmitterOption func(*Submitter)

// WithClock は受付日時に使う時刻関数を差し替える。
func WithClock(now func() time.Time) SubmitterOption {
	return func(s *Submitter) { s.now = now }
}

// WithIDGenerator は問い合わせIDの生成関数を差し替える。
func WithIDGenerator(newID func() string) SubmitterOption {
	return func(s *Submitter) { s.newID = newID }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(collector metrics.MetricsCollector) SubmitterOption {
	return func(s *Submitter) { s.metrics = collector }
}

// WithDestination はディープリンクの宛先番号を設定する。
func WithDestination(number string) SubmitterOption {
	return func(s *Submitter) { s.destination = number }
}

// NewSubmitter はSubmitterを生成する。
func NewSubmitter(queue *Queue, events EventPublisher, dispatcher HandoffDispatcher, logger *slog.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		queue:       queue,
		events:      events,
		handoff:     dispatcher,
		destination: handoff.DefaultWhatsAppNumber,
		logger:      logger,
		metrics:     metrics.Nop{},
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit は車両に対する問い合わせを受け付ける。
//
// 入力エラーはエラーではなく FieldErrors として返す。キューへの保存に失敗した場合は
// ErrPersistence をラップしたエラーを返し、通知と引き渡しは行わない。
// 引き渡しの失敗は保存済みの問い合わせに影響しない。
func (s *Submitter) Submit(ctx context.Context, listing model.Listing, draft Draft) (*SubmitResult, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "inquiry.Submit",
		trace.WithAttributes(attribute.Int64("listing.id", listing.ID)),
	)
	defer span.End()

	form, fieldErrors := s.validate(draft)
	if fieldErrors != nil {
		span.SetAttributes(attribute.Int("inquiry.field_errors", len(fieldErrors)))
		span.SetStatus(codes.Error, "validation failed")
		return &SubmitResult{FieldErrors: fieldErrors}, nil
	}

	now := s.now()
	inq := model.Inquiry{
		ID:                     s.newID(),
		Listing:                listing.Snapshot(),
		CustomerName:           form.Name,
		CustomerEmail:          form.Email,
		CustomerPhone:          form.Phone,
		CustomerLocation:       form.Location,
		Message:                form.Message,
		Type:                   form.InquiryType,
		PreferredContactMethod: form.ContactMethod,
		Status:                 model.InquiryStatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	span.SetAttributes(
		attribute.String("inquiry.id", inq.ID),
		attribute.String("inquiry.type", string(inq.Type)),
	)

	if err := s.queue.Append(ctx, inq); err != nil {
		s.metrics.RecordPersistenceFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		s.logger.ErrorContext(ctx, "failed to persist inquiry",
			slog.String("inquiry_id", inq.ID),
			slog.Int64("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil, err
	}

	s.events.Publish(notify.Event{
		Kind:      notify.KindQueueChanged,
		Origin:    notify.OriginLocal,
		InquiryID: inq.ID,
		At:        now,
	})

	message := handoff.BuildMessage(inq)
	if s.handoff != nil {
		s.handoff.Dispatch(ctx, inq, message)
	}

	s.metrics.RecordInquirySubmitted(string(inq.Type))
	s.metrics.RecordSubmitLatency(s.now().Sub(start))
	s.logger.InfoContext(ctx, "inquiry submitted",
		slog.String("inquiry_id", inq.ID),
		slog.Int64("listing_id", listing.ID),
		slog.String("inquiry_type", string(inq.Type)),
	)

	return &SubmitResult{
		Inquiry:    &inq,
		ContactURL: handoff.WhatsAppURL(s.destination, message),
	}, nil
}

func (s *Submitter) validate(draft Draft) (Form, map[string]string) {
	switch out := Validate(draft).(type) {
	case Valid:
		return out.Form, nil
	case Invalid:
		for field := range out.FieldErrors {
			s.metrics.RecordValidationFailure(field)
		}
		return Form{}, out.FieldErrors
	default:
		panic(fmt.Sprintf("inquiry: unexpected validation outcome %T", out))
	}
}
