package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-bytes-long-xxxxx"

// makeToken creates a signed HS256 JWT from the given secret and claims.
func makeToken(secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

func TestNewHS256Verifier_RequiresSecret(t *testing.T) {
	_, err := NewHS256Verifier("")
	require.Error(t, err)
}

func TestHS256Verifier_Verify(t *testing.T) {
	t.Parallel()

	v, err := NewHS256Verifier(testSecret)
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name     string
		token    string
		wantErr  bool
		wantID   string
		wantName string
	}{
		{
			name:     "subject_claim",
			token:    makeToken(testSecret, jwt.MapClaims{"sub": "user-123", "name": "Ada", "exp": exp}),
			wantID:   "user-123",
			wantName: "Ada",
		},
		{
			name:   "legacy_user_id_claim",
			token:  makeToken(testSecret, jwt.MapClaims{"user": map[string]any{"id": "65f0c0ffee"}, "exp": exp}),
			wantID: "65f0c0ffee",
		},
		{
			name:   "numeric_user_id",
			token:  makeToken(testSecret, jwt.MapClaims{"user": map[string]any{"id": 42}, "exp": exp}),
			wantID: "42",
		},
		{
			name:    "expired",
			token:   makeToken(testSecret, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing_exp",
			token:   makeToken(testSecret, jwt.MapClaims{"sub": "u"}),
			wantErr: true,
		},
		{
			name:    "wrong_secret",
			token:   makeToken("other-secret", jwt.MapClaims{"sub": "u", "exp": exp}),
			wantErr: true,
		},
		{
			name:    "malformed",
			token:   "not.a.jwt",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, claims.PrincipalID())
			assert.Equal(t, tt.wantName, claims.Name)
		})
	}
}

func TestHS256Verifier_RejectsOtherAlgorithms(t *testing.T) {
	v, err := NewHS256Verifier(testSecret)
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	require.Error(t, err)
}

func TestClaims_PrincipalID_Empty(t *testing.T) {
	assert.Empty(t, (&Claims{Raw: map[string]any{}}).PrincipalID())
	assert.Empty(t, (&Claims{Raw: map[string]any{"user": "flat"}}).PrincipalID())
}
