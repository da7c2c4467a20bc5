package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	sessionsServiceName = "saasgate.v1.Sessions"
	introspectMethod    = "/" + sessionsServiceName + "/Introspect"
	whoAmIMethod        = "/" + sessionsServiceName + "/WhoAmI"
)

type IntrospectRequest struct {
	Token string `json:"token"`
	// TenantID, when set, is the tenant the caller expects the token to
	// belong to.
	TenantID string `json:"tenantId,omitempty"`
}

// Session describes the identity behind an access token. Inactive sessions
// carry only Active and Reason.
type Session struct {
	Active          bool   `json:"active"`
	Reason          string `json:"reason,omitempty"`
	UserID          string `json:"userId,omitempty"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
	TenantID        string `json:"tenantId,omitempty"`
	IsImpersonating bool   `json:"isImpersonating,omitempty"`
	ImpersonatedBy  string `json:"impersonatedBy,omitempty"`
}

type WhoAmIRequest struct{}

// SessionsServer lets internal services check tokens issued by saasgate.
type SessionsServer interface {
	Introspect(context.Context, *IntrospectRequest) (*Session, error)
	WhoAmI(context.Context, *WhoAmIRequest) (*Session, error)
}

func _Sessions_Introspect_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IntrospectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: introspectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).Introspect(ctx, req.(*IntrospectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Sessions_WhoAmI_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WhoAmIRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: whoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).WhoAmI(ctx, req.(*WhoAmIRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var sessionsServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionsServiceName,
	HandlerType: (*SessionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: _Sessions_Introspect_Handler},
		{MethodName: "WhoAmI", Handler: _Sessions_WhoAmI_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "saasgate/v1/sessions",
}

func RegisterSessionsServer(s grpc.ServiceRegistrar, srv SessionsServer) {
	s.RegisterService(&sessionsServiceDesc, srv)
}

// SessionsClient calls saasgate.v1.Sessions with the JSON codec.
type SessionsClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionsClient(cc grpc.ClientConnInterface) *SessionsClient {
	return &SessionsClient{cc: cc}
}

func (c *SessionsClient) Introspect(ctx context.Context, in *IntrospectRequest, opts ...grpc.CallOption) (*Session, error) {
	out := new(Session)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, introspectMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionsClient) WhoAmI(ctx context.Context, in *WhoAmIRequest, opts ...grpc.CallOption) (*Session, error) {
	out := new(Session)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, whoAmIMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
