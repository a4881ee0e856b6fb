package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("secret", 7*24*time.Hour)
	id := Identity{UserID: uuid.New(), Email: "a@x.com"}

	raw, err := m.Issue(id)
	require.NoError(t, err)

	got, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerifyRejects(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	signer := NewManager("secret", 7*24*time.Hour)
	signer.now = func() time.Time { return issuedAt }

	valid, err := signer.Issue(Identity{UserID: uuid.New(), Email: "a@x.com"})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.NewString()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		at      time.Time
		raw     string
		wantErr error
	}{
		{name: "missing token", secret: "secret", at: issuedAt, raw: "", wantErr: ErrMissing},
		{name: "wrong secret", secret: "other", at: issuedAt, raw: valid, wantErr: ErrInvalid},
		{name: "expired", secret: "secret", at: issuedAt.Add(7*24*time.Hour + time.Second), raw: valid, wantErr: ErrInvalid},
		{name: "tampered payload", secret: "secret", at: issuedAt, raw: tamper(valid), wantErr: ErrInvalid},
		{name: "alg none", secret: "secret", at: issuedAt, raw: noneToken, wantErr: ErrInvalid},
		{name: "garbage", secret: "secret", at: issuedAt, raw: "not.a.jwt", wantErr: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.secret, 7*24*time.Hour)
			at := tt.at
			m.now = func() time.Time { return at }

			_, err := m.Verify(tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyAcceptsBeforeExpiry(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager("secret", 7*24*time.Hour)
	m.now = func() time.Time { return issuedAt }
	raw, err := m.Issue(Identity{UserID: uuid.New(), Email: "a@x.com"})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(7*24*time.Hour - time.Minute) }
	_, err = m.Verify(raw)
	assert.NoError(t, err)
}

func tamper(raw string) string {
	parts := strings.Split(raw, ".")
	claims, _ := base64.RawURLEncoding.DecodeString(parts[1])
	forged := strings.Replace(string(claims), "a@x.com", "b@x.com", 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))
	return strings.Join(parts, ".")
}
