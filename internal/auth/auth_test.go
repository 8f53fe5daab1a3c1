package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	id := uuid.New()

	token, err := GenerateToken(secret, id, true, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != id.String() {
		t.Errorf("subject = %s, want %s", claims.Subject, id)
	}
	if !claims.IsAdmin {
		t.Error("is_admin flag not carried")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken([]byte("secret-a"), uuid.New(), false, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken([]byte("secret-b"), token); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(secret, uuid.New(), false, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken(secret, token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken([]byte("s"), "not.a.token"); err == nil {
		t.Error("malformed token accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name       string
		password   string
		minLength  int
		complexity bool
		wantErr    bool
	}{
		{"long enough", "password1", 8, false, false},
		{"too short", "pass", 8, false, true},
		{"complex enough", "Passw0rd!", 8, true, false},
		{"long but uniform", "passwordpassword", 8, true, true},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password, tc.minLength, tc.complexity)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
