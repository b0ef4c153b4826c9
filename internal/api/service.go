// Package api is the daemon's gRPC surface. Messages are structpb.Struct
// values, so the service is described by hand rather than generated.
// Integer ids travel as decimal strings.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "telesync.v1.Daemon"

// Unary method names.
const (
	MethodStatus        = "Status"
	MethodListChats     = "ListChats"
	MethodLoadArchive   = "LoadArchive"
	MethodOpenChat      = "OpenChat"
	MethodCloseChat     = "CloseChat"
	MethodHistory       = "History"
	MethodSend          = "Send"
	MethodMarkRead      = "MarkRead"
	MethodAction        = "Action"
	MethodDismiss       = "Dismiss"
	MethodPush          = "Push"
	MethodSetForeground = "SetForeground"
	MethodLogOut        = "LogOut"

	StreamWatchEvents = "WatchEvents"
)

// FullMethod returns the wire path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// DaemonServer is implemented by Server.
type DaemonServer interface {
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadArchive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Send(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Action(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dismiss(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Push(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetForeground(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*structpb.Struct) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(evt *structpb.Struct) error {
	return s.ServerStream.SendMsg(evt)
}

type unaryFunc func(DaemonServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DaemonServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DaemonServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DaemonServer).WatchEvents(in, &eventStream{stream})
}

// ServiceDesc describes the daemon service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodStatus, DaemonServer.Status),
		unary(MethodListChats, DaemonServer.ListChats),
		unary(MethodLoadArchive, DaemonServer.LoadArchive),
		unary(MethodOpenChat, DaemonServer.OpenChat),
		unary(MethodCloseChat, DaemonServer.CloseChat),
		unary(MethodHistory, DaemonServer.History),
		unary(MethodSend, DaemonServer.Send),
		unary(MethodMarkRead, DaemonServer.MarkRead),
		unary(MethodAction, DaemonServer.Action),
		unary(MethodDismiss, DaemonServer.Dismiss),
		unary(MethodPush, DaemonServer.Push),
		unary(MethodSetForeground, DaemonServer.SetForeground),
		unary(MethodLogOut, DaemonServer.LogOut),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
}

// Register adds srv to s.
func Register(s *grpc.Server, srv DaemonServer) {
	s.RegisterService(&ServiceDesc, srv)
}
