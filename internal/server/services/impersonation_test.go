package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

func TestImpersonation_StartAndEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acmeID := f.acme.ID
	staff := f.mem.AddUser(models.User{TenantID: &acmeID, Email: "staff@acme.test", Role: models.RoleStaff, IsActive: true})

	res, err := f.imp.Start(ctx, f.owner.ID, staff.ID, acmeID)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, res.User.ID)

	p, err := f.tokens.ValidateAccessToken(ctx, res.AccessToken, acmeID)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, p.User.ID)
	assert.Equal(t, models.RoleStaff, p.User.Role)
	assert.True(t, p.IsImpersonating)
	assert.Equal(t, f.owner.ID, p.ImpersonatedBy)
	assert.Equal(t, acmeID, p.TenantID)

	back, err := f.imp.End(ctx, p.ImpersonatedBy)
	require.NoError(t, err)
	op, err := f.tokens.ValidateAccessToken(ctx, back.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, op.User.ID)
	assert.False(t, op.IsImpersonating)
	assert.Empty(t, op.ImpersonatedBy)

	assert.Equal(t, 1, f.rec.count(EventImpersonationStart))
	assert.Equal(t, 1, f.rec.count(EventImpersonationEnd))
}

func TestImpersonation_IssuesNoRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.imp.Start(ctx, f.owner.ID, f.customer.ID, f.acme.ID)
	require.NoError(t, err)

	n, err := f.store.RefreshTokens().RevokeAllForUser(ctx, f.customer.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImpersonation_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acmeID := f.acme.ID
	inactive := f.mem.AddUser(models.User{TenantID: &acmeID, Email: "off@acme.test", Role: models.RoleCustomer, IsActive: false})
	retired := f.mem.AddUser(models.User{Email: "retired@saasgate.test", Role: models.RoleOwner, IsActive: false})

	tests := []struct {
		name                    string
		ownerID, target, tenant string
	}{
		{"caller is not an owner", f.admin1.ID, f.customer.ID, acmeID},
		{"caller is a deactivated owner", retired.ID, f.customer.ID, acmeID},
		{"caller unknown", "ghost", f.customer.ID, acmeID},
		{"target unknown", f.owner.ID, "ghost", acmeID},
		{"target inactive", f.owner.ID, inactive.ID, acmeID},
		{"target in another tenant", f.owner.ID, f.foreign.ID, acmeID},
		{"target is an owner", f.owner.ID, f.otherOwner.ID, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.imp.Start(ctx, tt.ownerID, tt.target, tt.tenant)
			assert.ErrorIs(t, err, common.ErrNotAuthorized)
			assert.Nil(t, res)
		})
	}
	assert.Zero(t, f.rec.count(EventImpersonationStart))

	_, err := f.imp.End(ctx, f.customer.ID)
	assert.ErrorIs(t, err, common.ErrNotAuthorized)
}
