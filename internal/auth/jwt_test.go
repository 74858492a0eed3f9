package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexusterm/server/internal/user"
)

const testSecret = "test-secret"

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestGenerateTokenPairClaims(t *testing.T) {
	db := setupAuthDB(t)
	u := &user.User{ID: uuid.New(), Name: "alice", IsAdmin: true}

	pair, err := GenerateTokenPair(u, testSecret, db)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	parsed, err := jwt.Parse(pair.AccessToken, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("access token is not valid")
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != u.ID.String() {
		t.Errorf("sub = %v, want %s", claims["sub"], u.ID)
	}
	if claims["name"] != "alice" {
		t.Errorf("name = %v, want alice", claims["name"])
	}
	if claims["adm"] != true {
		t.Errorf("adm = %v, want true", claims["adm"])
	}
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	db := setupAuthDB(t)
	u := &user.User{ID: uuid.New(), Name: "bob"}

	pair, err := GenerateTokenPair(u, testSecret, db)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	_, err = jwt.Parse(pair.AccessToken, func(tok *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	if err == nil {
		t.Error("token parsed with the wrong secret")
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	db := setupAuthDB(t)
	u := &user.User{ID: uuid.New(), Name: "carol"}

	pair, err := GenerateTokenPair(u, testSecret, db)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	rt, err := ValidateRefreshToken(pair.RefreshToken, db)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	if rt.UserID != u.ID {
		t.Errorf("refresh token user = %s, want %s", rt.UserID, u.ID)
	}

	// A refresh token is single-use.
	if _, err := ValidateRefreshToken(pair.RefreshToken, db); err == nil {
		t.Error("used refresh token validated a second time")
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	db := setupAuthDB(t)
	u := &user.User{ID: uuid.New(), Name: "dave"}

	pair, err := GenerateTokenPair(u, testSecret, db)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	RevokeRefreshToken(pair.RefreshToken, db)
	if _, err := ValidateRefreshToken(pair.RefreshToken, db); err == nil {
		t.Error("revoked refresh token still validates")
	}
}

func TestPruneExpiredRefreshTokens(t *testing.T) {
	db := setupAuthDB(t)
	expired := &RefreshToken{UserID: uuid.New(), TokenHash: "h1", ExpiresAt: time.Now().Add(-time.Hour)}
	live := &RefreshToken{UserID: uuid.New(), TokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour)}
	for _, rt := range []*RefreshToken{expired, live} {
		if err := db.Create(rt).Error; err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	if err := PruneExpiredRefreshTokens(db); err != nil {
		t.Fatalf("PruneExpiredRefreshTokens: %v", err)
	}

	var count int64
	db.Model(&RefreshToken{}).Count(&count)
	if count != 1 {
		t.Errorf("got %d tokens after prune, want 1", count)
	}
}

func TestValidateRefreshTokenUnknown(t *testing.T) {
	db := setupAuthDB(t)

	if _, err := ValidateRefreshToken(uuid.NewString(), db); err == nil {
		t.Error("unknown refresh token validated")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals the plaintext password")
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}
