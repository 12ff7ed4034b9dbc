package security

import (
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec("test-access-secret", "test-refresh-secret", "resqride-auth", time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return c
}

func TestNewTokenCodec_MissingSecret(t *testing.T) {
	if _, err := NewTokenCodec("", "r", "iss", time.Hour, time.Hour); err == nil {
		t.Fatal("want error for empty access secret")
	}
	if _, err := NewTokenCodec("a", "", "iss", time.Hour, time.Hour); err == nil {
		t.Fatal("want error for empty refresh secret")
	}
	if _, err := NewTokenCodec("same", "same", "iss", time.Hour, time.Hour); err == nil {
		t.Fatal("want error for identical secrets")
	}
}

func TestTokenCodec_AccessRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	token, exp, err := c.IssueAccess("u1", "driver", "s1", "d@x.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("empty access token")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expiry in the past")
	}
	claims, err := c.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "driver" || claims.SessionID != "s1" || claims.Email != "d@x.com" {
		t.Errorf("claims round-trip: got sub=%q role=%q session=%q email=%q",
			claims.Subject, claims.Role, claims.SessionID, claims.Email)
	}
}

func TestTokenCodec_RefreshRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	token, jti, _, err := c.IssueRefresh("u1", "user", "s1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if jti == "" {
		t.Fatal("empty jti")
	}
	claims, err := c.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "user" || claims.SessionID != "s1" {
		t.Errorf("claims round-trip: got sub=%q role=%q session=%q", claims.Subject, claims.Role, claims.SessionID)
	}
	if claims.ID != jti {
		t.Errorf("jti: got %q want %q", claims.ID, jti)
	}
}

func TestTokenCodec_ClassSeparation(t *testing.T) {
	c := newTestCodec(t)
	access, _, err := c.IssueAccess("u1", "user", "s1", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := c.VerifyRefresh(access); err != ErrInvalidToken {
		t.Errorf("access token verified with refresh secret: %v", err)
	}
	refresh, _, _, err := c.IssueRefresh("u1", "user", "s1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := c.VerifyAccess(refresh); err != ErrInvalidToken {
		t.Errorf("refresh token verified with access secret: %v", err)
	}
}

func TestTokenCodec_VerifyInvalid(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.VerifyAccess("not-a-token"); err != ErrInvalidToken {
		t.Errorf("VerifyAccess garbage: want ErrInvalidToken, got %v", err)
	}
	token, _, err := c.IssueAccess("u1", "user", "s1", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := c.VerifyAccess(tampered); err != ErrInvalidToken {
		t.Errorf("VerifyAccess tampered: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_ExpiredRejected(t *testing.T) {
	c, err := NewTokenCodec("test-access-secret", "test-refresh-secret", "resqride-auth", -time.Minute, -time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := c.IssueAccess("u1", "user", "s1", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := c.VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
	// DecodeUnverified still reads claims off an expired token.
	claims, err := DecodeUnverified(token)
	if err != nil {
		t.Fatalf("DecodeUnverified: %v", err)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.Before(time.Now()) {
		t.Error("DecodeUnverified: expected past expiry on claims")
	}
}

func TestDecodeUnverified_Garbage(t *testing.T) {
	if _, err := DecodeUnverified("garbage"); err != ErrInvalidToken {
		t.Errorf("DecodeUnverified garbage: want ErrInvalidToken, got %v", err)
	}
}
