package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTenant = "11111111-2222-3333-4444-555555555555"
	testClient = "66666666-7777-8888-9999-000000000000"
	testKid    = "test-key"
)

func newTestValidator(t *testing.T) (*JWTValidator, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := NewJWTValidator(&config.AzureAdConfig{TenantId: testTenant, ClientId: testClient})
	v.publicKeys[testKid] = &key.PublicKey
	v.lastUpdate = time.Now()
	return v, key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "https://login.microsoftonline.com/" + testTenant + "/v2.0",
		"aud":   testClient,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"oid":   "0b6f7e2a-7c3e-4d8c-9f5a-3a1f2d9e8c71",
		"name":  "Ayse Yilmaz",
		"email": "ayse@example.com",
		"roles": []interface{}{"Warehouse", "site-manager", "cleaner"},
	}
}

func TestValidateToken(t *testing.T) {
	v, key := newTestValidator(t)

	user, err := v.ValidateToken(sign(t, key, baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "0b6f7e2a-7c3e-4d8c-9f5a-3a1f2d9e8c71", user.UserID.String())
	assert.Equal(t, []domain.UserRoleType{domain.RoleWarehouse, domain.RoleSiteManager}, user.Roles)

	actor := user.Actor()
	assert.Equal(t, "Ayse Yilmaz", actor.Name)
	assert.True(t, actor.Can(domain.CapabilityRecordShipment))
	assert.True(t, actor.Can(domain.CapabilityEscalate))
	assert.False(t, actor.Can(domain.CapabilityManageOrders))
}

func TestValidateToken_Rejects(t *testing.T) {
	v, key := newTestValidator(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"expired", func() string {
			c := baseClaims()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(t, key, c)
		}, ErrExpiredToken},
		{"wrong audience", func() string {
			c := baseClaims()
			c["aud"] = "someone-else"
			return sign(t, key, c)
		}, ErrInvalidToken},
		{"wrong tenant", func() string {
			c := baseClaims()
			c["iss"] = "https://login.microsoftonline.com/other/v2.0"
			return sign(t, key, c)
		}, ErrInvalidToken},
		{"wrong signing key", func() string { return sign(t, other, baseClaims()) }, ErrInvalidToken},
		{"garbage", func() string { return "not-a-jwt" }, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateToken_RequiredScopes(t *testing.T) {
	v, key := newTestValidator(t)
	v.config.RequiredScopes = "Purchasing.ReadWrite, access_as_user"

	c := baseClaims()
	c["scp"] = "User.Read access_as_user"
	_, err := v.ValidateToken(sign(t, key, c))
	assert.NoError(t, err)

	c["scp"] = "User.Read"
	_, err = v.ValidateToken(sign(t, key, c))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestExtractRoles_SingleStringClaim(t *testing.T) {
	roles := ExtractRoles(jwt.MapClaims{"role": "PURCHASING"})
	assert.Equal(t, []domain.UserRoleType{domain.RolePurchasing}, roles)
	assert.Empty(t, ExtractRoles(jwt.MapClaims{}))
}
