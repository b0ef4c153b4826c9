package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const pollInterval = 500 * time.Millisecond

// Sent is the payload of outbox.sent events.
type Sent struct {
	ClientMsgID string
	ChatID      int64
	MessageID   int64
}

// Failed is the payload of outbox.failed events.
type Failed struct {
	ClientMsgID string
	ChatID      int64
	Error       string
}

// Sender drains the outbox and hands messages to the backend at a bounded
// rate. Sends are fire-and-forget: the backend answers with a pending
// message and later confirms or fails it through updates.
type Sender struct {
	db      *store.DB
	client  td.Client
	bus     *bus.Bus
	limiter ratelimit.Limiter
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewSender creates a new outbox sender allowing perSecond sends per second.
func NewSender(db *store.DB, client td.Client, b *bus.Bus, perSecond int, logger *zap.Logger) *Sender {
	if perSecond <= 0 {
		perSecond = 5
	}
	return &Sender{
		db:      db,
		client:  client,
		bus:     b,
		limiter: ratelimit.New(perSecond, ratelimit.WithoutSlack),
		logger:  logger,
	}
}

// Queue stores a text message for sending and returns its client id.
func (s *Sender) Queue(chatID, replyTo int64, text string) (string, error) {
	id := uuid.NewString()
	if err := s.db.QueueOutbox(id, chatID, replyTo, text); err != nil {
		return "", err
	}
	return id, nil
}

// Start requeues entries a previous process left mid-send and begins
// polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueSending(); err != nil {
		s.logger.Error("failed to requeue outbox", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox(0)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		claimed, err := s.db.MarkOutboxSending(entry.ClientMsgID)
		if err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		if !claimed {
			continue
		}
		s.limiter.Take()
		s.send(entry)
	}
}

func (s *Sender) send(entry store.OutboxEntry) {
	req := td.SendMessage{ChatID: entry.ChatID, ReplyToMessageID: entry.ReplyTo, Text: entry.Body}
	s.client.Send(req, func(resp td.Response) {
		switch r := resp.(type) {
		case *td.Message:
			if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
				s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			}
			s.logger.Info("message sent",
				zap.String("client_msg_id", entry.ClientMsgID),
				zap.Int64("chat_id", entry.ChatID),
				zap.Int64("message_id", r.ID))
			s.bus.Emit(bus.KindOutboxSent, Sent{ClientMsgID: entry.ClientMsgID, ChatID: entry.ChatID, MessageID: r.ID})
		case *td.Error:
			s.fail(entry, r.Error())
		default:
			s.fail(entry, "unexpected response")
		}
	})
}

func (s *Sender) fail(entry store.OutboxEntry, reason string) {
	s.logger.Error("failed to send message", zap.String("error", reason), zap.String("client_msg_id", entry.ClientMsgID))
	if err := s.db.MarkOutboxFailed(entry.ClientMsgID, reason); err != nil {
		s.logger.Error("failed to mark failed", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.bus.Emit(bus.KindOutboxFailed, Failed{ClientMsgID: entry.ClientMsgID, ChatID: entry.ChatID, Error: reason})
}
