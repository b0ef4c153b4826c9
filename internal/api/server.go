package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/correlator"
	"github.com/matheus3301/telesync/internal/engine"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/window"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// WatchNamespaces are streamed when a watcher names none.
var WatchNamespaces = []string{"chats.", "window.", "file.", "notify.", "session.", "outbox."}

// Server implements DaemonServer over one engine.
type Server struct {
	session     string
	startedAt   time.Time
	engine      *engine.Engine
	gate        *notify.Gate
	credentials *store.Credentials
	bus         *bus.Bus
	logger      *zap.Logger
}

var _ DaemonServer = (*Server)(nil)

// NewServer creates the service. gate and credentials may be nil.
func NewServer(session string, e *engine.Engine, gate *notify.Gate, creds *store.Credentials, b *bus.Bus, logger *zap.Logger) *Server {
	return &Server{
		session:     session,
		startedAt:   time.Now(),
		engine:      e,
		gate:        gate,
		credentials: creds,
		bus:         b,
		logger:      logger,
	}
}

// rpcError maps engine and backend errors onto gRPC codes.
func rpcError(op string, err error) error {
	var tdErr *td.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrNoActiveChat):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, engine.ErrStopped):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return grpcstatus.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	case errors.Is(err, correlator.ErrUnexpectedResponse):
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	case errors.As(err, &tdErr):
		switch {
		case tdErr.IsPermanent():
			return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
		case tdErr.Code == 400:
			return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
		case tdErr.Code == 401:
			return grpcstatus.Errorf(codes.Unauthenticated, "%s: %v", op, err)
		}
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func ok() (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *Server) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	auth, _ := s.engine.Authorization()
	out := map[string]any{
		"session":       s.session,
		"status":        string(s.engine.Status()),
		"authorization": string(auth),
		"connection":    string(s.engine.Connection()),
		"uptime_ms":     time.Since(s.startedAt).Milliseconds(),
		"chats":         int64(len(s.engine.Chats().Chats)),
	}
	if w := s.engine.Window(); w != nil {
		out["active_chat_id"] = ID(w.ChatID)
	}
	if s.credentials != nil {
		if acct, found, err := s.credentials.Account(); err == nil && found {
			out["account"] = acct
		}
	}
	if s.gate != nil {
		out["notifications"] = s.gate.Enabled()
	}
	return newStruct(out)
}

func (s *Server) ListChats(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	list, err := parseList(stringArg(in, "list"), intArg(in, "folder_id"))
	if err != nil {
		return nil, err
	}
	chats := chatsInList(s.engine.Chats(), list)
	if limit := intArg(in, "limit"); limit > 0 && int(limit) < len(chats) {
		chats = chats[:limit]
	}
	values := make([]any, 0, len(chats))
	for _, c := range chats {
		values = append(values, chatValue(c))
	}
	return newStruct(map[string]any{"chats": values})
}

func (s *Server) LoadArchive(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.engine.LoadArchive(ctx, int32(intArg(in, "limit")))
	if err != nil {
		return nil, rpcError("load archive", err)
	}
	return newStruct(map[string]any{"loaded": int64(n)})
}

func (s *Server) OpenChat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.OpenChat(ctx, chatID, nil)
	if err != nil {
		return nil, rpcError("open chat", err)
	}
	if len(snap.Messages) == 0 {
		if _, err := s.engine.FetchMore(ctx, chatID, 0, engine.DefaultPageSize, window.Backfill{}); err != nil {
			s.logger.Warn("initial history fetch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		} else if w := s.engine.Window(); w != nil && w.ChatID == chatID {
			snap = w
		}
	}
	return newStruct(windowValue(snap))
}

func (s *Server) CloseChat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.engine.CloseChat(ctx, stringArg(in, "draft")); err != nil {
		return nil, rpcError("close chat", err)
	}
	return ok()
}

// History loads older messages into the active window and returns it.
// "all" keeps paging until the start of the chat.
func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	from, err := optionalID(in, "from_message_id")
	if err != nil {
		return nil, err
	}
	policy := window.Backfill{}
	if boolArg(in, "all") {
		policy = window.UntilStart
	}
	added, err := s.engine.FetchMore(ctx, chatID, from, int32(intArg(in, "limit")), policy)
	if err != nil {
		return nil, rpcError("fetch history", err)
	}
	out := windowValue(s.engine.Window())
	out["added"] = int64(added)
	return newStruct(out)
}

func (s *Server) Send(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	replyTo, err := optionalID(in, "reply_to")
	if err != nil {
		return nil, err
	}
	text := stringArg(in, "text")
	if text == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "text is required")
	}
	clientID, err := s.engine.SendText(ctx, chatID, replyTo, text)
	if err != nil {
		return nil, rpcError("send", err)
	}
	return newStruct(map[string]any{"client_id": clientID})
}

func (s *Server) MarkRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	msgID, err := optionalID(in, "message_id")
	if err != nil {
		return nil, err
	}
	if err := s.engine.MarkRead(ctx, chatID, msgID); err != nil {
		return nil, rpcError("mark read", err)
	}
	return ok()
}

func (s *Server) Action(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	action := notify.Action(stringArg(in, "action"))
	if action != notify.ActionMarkRead && action != notify.ActionReply {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown action %q", action)
	}
	if err := s.engine.HandleAction(ctx, chatID, action, stringArg(in, "text")); err != nil {
		return nil, rpcError("notification action", err)
	}
	return ok()
}

func (s *Server) Dismiss(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireID(in, "chat_id")
	if err != nil {
		return nil, err
	}
	if err := s.engine.Dismiss(ctx, chatID); err != nil {
		return nil, rpcError("dismiss", err)
	}
	return ok()
}

// Push processes a wake-up payload in the running session.
func (s *Server) Push(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	payload := stringArg(in, "payload")
	if payload == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "payload is required")
	}
	if err := s.engine.ProcessPush(ctx, payload); err != nil {
		return nil, rpcError("process push", err)
	}
	return ok()
}

func (s *Server) SetForeground(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.gate != nil {
		s.gate.SetForeground(boolArg(in, "foreground"))
	}
	return ok()
}

func (s *Server) LogOut(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.engine.LogOut(ctx); err != nil {
		return nil, rpcError("log out", err)
	}
	if s.credentials != nil {
		if err := s.credentials.Clear(); err != nil {
			s.logger.Warn("failed to clear credentials", zap.Error(err))
		}
	}
	return ok()
}

// WatchEvents streams bus events. A watcher counts as the foreground
// presentation layer while it is connected.
func (s *Server) WatchEvents(in *structpb.Struct, stream EventStream) error {
	namespaces := WatchNamespaces
	if list := field(in, "namespaces").GetListValue(); list != nil && len(list.GetValues()) > 0 {
		namespaces = nil
		for _, v := range list.GetValues() {
			namespaces = append(namespaces, v.GetStringValue())
		}
	}

	ch, unsub := s.bus.SubscribeMany(256, namespaces...)
	defer unsub()

	if s.gate != nil {
		defer s.gate.Attach()()
	}

	for {
		select {
		case evt := <-ch:
			msg, err := eventValue(evt)
			if err != nil {
				s.logger.Warn("failed to encode event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
