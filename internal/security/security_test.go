package security

import (
	"testing"
	"time"
)

func TestAnonymizeSessionStableAndKeyed(t *testing.T) {
	a := AnonymizeSession("secret-a", "session-1")
	b := AnonymizeSession("secret-a", "session-1")
	if a != b {
		t.Fatal("anonymized key not stable for same inputs")
	}
	if a == "session-1" {
		t.Fatal("session id stored unhashed")
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(a))
	}
	if AnonymizeSession("secret-b", "session-1") == a {
		t.Fatal("different secrets produced the same key")
	}
	if AnonymizeSession("secret-a", "session-2") == a {
		t.Fatal("different sessions produced the same key")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateUserToken("secret", 42, "u@example.com", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	claims, errParse := ParseUserToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Email != "u@example.com" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, errWrong := ParseUserToken("other-secret", token); errWrong == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func TestUserTokenExpiry(t *testing.T) {
	token, errGen := GenerateUserToken("secret", 42, "", -time.Minute)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if _, errParse := ParseUserToken("secret", token); errParse != ErrExpiredToken {
		t.Fatalf("err = %v, want ErrExpiredToken", errParse)
	}
}

func TestAdminTokenNotValidAsUserToken(t *testing.T) {
	token, errGen := GenerateAdminToken("secret", 7, "ops", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse admin: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "ops" {
		t.Fatalf("claims = %+v", claims)
	}
	// Admin claims carry no user_id, so user parsing must reject it.
	if _, errUser := ParseUserToken("secret", token); errUser == nil {
		t.Fatal("admin token accepted as user token")
	}
}
