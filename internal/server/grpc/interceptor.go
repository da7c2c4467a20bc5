package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Metadata keys read by the tenant interceptor. gRPC lowercases keys.
const (
	tenantIDKey      = "x-tenant-id"
	forwardedHostKey = "x-forwarded-host"
	authorityKey     = ":authority"
)

// tenantScoped lists the methods that run on behalf of a tenant.
var tenantScoped = map[string]bool{
	whoAmIMethod: true,
}

// authenticated lists the methods that need an access token in metadata.
var authenticated = map[string]bool{
	whoAmIMethod: true,
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *GRPCServer) tenantInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !tenantScoped[info.FullMethod] {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	snap, err := s.resolver.Resolve(ctx, tenancy.Signals{
		Path:          info.FullMethod,
		TenantIDHint:  first(md, tenantIDKey),
		ForwardedHost: first(md, forwardedHostKey),
		Host:          first(md, authorityKey),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if snap != nil {
		ctx = tenancy.WithTenant(ctx, snap)
	}
	return handler(ctx, req)
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !authenticated[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		accessToken = first(md, common.AccessTokenHeaderName)
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	p, err := s.tokens.ValidateAccessToken(ctx, accessToken, tenancy.TenantID(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return handler(context.WithValue(ctx, principalKey, p), req)
}

func principalFrom(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok && p != nil
}
