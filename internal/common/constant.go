package common

// Request signals consulted by tenant resolution.
const (
	TenantIDHeader      = "X-Tenant-Id"
	ForwardedHostHeader = "X-Forwarded-Host"
)

// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"

// Cookie names used to deliver tokens to browser clients.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)
