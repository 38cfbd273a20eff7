package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

// Queue consumes Document JSON from one subject and publishes finished
// OutputRecord JSON to another.
type Queue struct {
	conn          *nats.Conn
	subject       string
	resultSubject string
	executor      *resilience.Executor
}

// workerGroup is the queue group every worker joins so each document is
// processed once.
const workerGroup = "triage-workers"

// Options tunes the connection. Zero values take the defaults below.
type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	FailFastConnect    bool
	ResilienceExecutor *resilience.Executor
}

func (o Options) connectOptions() []nats.Option {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	return []nats.Option{
		nats.Name("servicing-triage"),
		nats.Timeout(o.ConnectTimeout),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnects),
		nats.RetryOnFailedConnect(!o.FailFastConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func New(url, subject, resultSubject string) (*Queue, error) {
	return NewWithOptions(url, subject, resultSubject, Options{})
}

func NewWithOptions(url, subject, resultSubject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		subject:       subject,
		resultSubject: resultSubject,
		executor:      options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishDocument enqueues a document for the worker pool.
func (q *Queue) PublishDocument(ctx context.Context, doc domain.Document) error {
	msg, err := newMessage(q.subject, doc.ID, doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return q.publish(ctx, msg)
}

// PublishRecord emits a finished record on the result subject.
func (q *Queue) PublishRecord(ctx context.Context, record domain.OutputRecord) error {
	msg, err := newMessage(q.resultSubject, record.EmailID, record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return q.publish(ctx, msg)
}

// Deliver lets the queue act as the pipeline's delivery target.
func (q *Queue) Deliver(ctx context.Context, record domain.OutputRecord) error {
	if err := q.PublishRecord(ctx, record); err != nil {
		return domain.WrapError(domain.ErrDelivery, "publish record "+record.EmailID, err)
	}
	return nil
}

// newMessage carries the email id as Nats-Msg-Id so a JetStream stream on
// the subject drops redelivered copies.
func newMessage(subject, emailID string, payload any) (*nats.Msg, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if emailID != "" {
		msg.Header.Set(nats.MsgIdHdr, emailID)
	}
	return msg, nil
}

func (q *Queue) publish(ctx context.Context, msg *nats.Msg) error {
	err := q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
		}
		return nil
	}, classifyNATSError)
	return temporary(err)
}

func (q *Queue) SubscribeDocuments(ctx context.Context, handler func(context.Context, domain.Document) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		doc, err := decodeDocument(msg.Data)
		if err != nil {
			slog.Warn("queue_message_rejected", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, doc); err != nil {
			slog.Error("worker_handler_error", "email_id", doc.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func decodeDocument(data []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrParse, "decode document message", err)
	}
	if doc.ID == "" {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "decode document message", errors.New("document id is empty"))
	}
	return doc, nil
}
