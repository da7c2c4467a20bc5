package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
)

var statusTable = []struct {
	err  error
	code codes.Code
	msg  string
}{
	{common.ErrMalformedHost, codes.InvalidArgument, "malformed host"},
	{common.ErrTenantNotFound, codes.NotFound, "tenant not found"},
	{common.ErrTenantSuspended, codes.PermissionDenied, "tenant suspended"},
	{common.ErrTenantUnavailable, codes.Unavailable, "tenant unavailable"},
	{common.ErrTokenExpired, codes.Unauthenticated, "token expired"},
	{common.ErrInvalidToken, codes.Unauthenticated, "invalid token"},
	{common.ErrInvalidSession, codes.Unauthenticated, "invalid session"},
	{common.ErrNotAuthorized, codes.PermissionDenied, "not authorized"},
}

// toStatus maps a domain error to a gRPC status. Unknown errors are logged
// and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return status.Error(e.code, e.msg)
		}
	}
	s.logger.Error(ctx, "rpc failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// reason is the short inactive-session explanation returned by Introspect.
func reason(err error) (string, bool) {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired", true
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid", true
	case errors.Is(err, common.ErrInvalidSession):
		return "wrong_tenant", true
	}
	return "", false
}

func sessionOf(p *services.Principal) *Session {
	return &Session{
		Active:          true,
		UserID:          p.User.ID,
		Email:           p.User.Email,
		Role:            string(p.User.Role),
		TenantID:        p.TenantID,
		IsImpersonating: p.IsImpersonating,
		ImpersonatedBy:  p.ImpersonatedBy,
	}
}

// Introspect reports whether a token is usable. Rejected tokens are an
// inactive Session, not an RPC error.
func (s *GRPCServer) Introspect(ctx context.Context, req *IntrospectRequest) (*Session, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	p, err := s.tokens.ValidateAccessToken(ctx, req.Token, req.TenantID)
	if err != nil {
		if r, ok := reason(err); ok {
			return &Session{Active: false, Reason: r}, nil
		}
		return nil, s.toStatus(ctx, err)
	}
	return sessionOf(p), nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *WhoAmIRequest) (*Session, error) {
	p, ok := principalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return sessionOf(p), nil
}
