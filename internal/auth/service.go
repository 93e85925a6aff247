package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"medassist/internal/models"
	"medassist/internal/redis"
)

const (
	redisTokenPrefix  = "auth:token:"
	maxFailedAttempts = 3
)

var (
	// ErrInvalidCredentials is returned for a wrong PIN.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned once the PIN failure limit is reached.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken is returned for unknown or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Service handles account lookup, PIN verification and token issuance.
// Tokens are opaque random strings stored in the database; redis caches
// token lookups when available.
type Service struct {
	db       *sql.DB
	rdb      *redis.Client
	tokenTTL time.Duration
}

func NewService(db *sql.DB, rdb *redis.Client, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{db: db, rdb: rdb, tokenTTL: tokenTTL}
}

// Authenticate verifies a (name, dob, pin) triple. An unknown (name, dob)
// pair registers a new account with the given PIN. A wrong PIN increments
// the failure counter and locks the account at the limit; a correct PIN
// resets the counter.
func (s *Service) Authenticate(ctx context.Context, name, dob, pin string) (*models.User, error) {
	if name == "" || dob == "" || pin == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.findUser(ctx, name, dob)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createUser(ctx, name, dob, pin)
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if user.IsLocked {
		return nil, ErrAccountLocked
	}

	if hashPin(pin) != user.PinHash {
		user.FailedAttempts++
		locked := user.FailedAttempts >= maxFailedAttempts
		if _, err := s.db.ExecContext(ctx,
			"UPDATE users SET failed_attempts = ?, is_locked = ? WHERE id = ?",
			user.FailedAttempts, locked, user.ID,
		); err != nil {
			return nil, fmt.Errorf("record failed attempt: %w", err)
		}
		if locked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedAttempts > 0 {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE users SET failed_attempts = 0 WHERE id = ?", user.ID,
		); err != nil {
			return nil, fmt.Errorf("reset failed attempts: %w", err)
		}
		user.FailedAttempts = 0
	}

	return user, nil
}

// IssueToken creates a new opaque token for the user.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO user_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		token, userID, now, expiresAt,
	); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, redisTokenPrefix+token, strconv.FormatInt(userID, 10), s.tokenTTL); err != nil {
			log.Printf("cache token: %v", err)
		}
	}

	return token, nil
}

// ValidateToken resolves a token to its user ID, checking the redis cache
// before the database. Expired tokens are purged.
func (s *Service) ValidateToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, redisTokenPrefix+token); err == nil {
			userID, parseErr := strconv.ParseInt(val, 10, 64)
			if parseErr == nil {
				return userID, nil
			}
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("token cache lookup: %v", err)
		}
	}

	var (
		userID    int64
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM user_tokens WHERE token = ?", token,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("look up token: %w", err)
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM user_tokens WHERE token = ?", token); err != nil {
			log.Printf("purge expired token: %v", err)
		}
		return 0, ErrInvalidToken
	}

	if s.rdb != nil {
		ttl := time.Until(expiresAt)
		if err := s.rdb.Set(ctx, redisTokenPrefix+token, strconv.FormatInt(userID, 10), ttl); err != nil {
			log.Printf("cache token: %v", err)
		}
	}

	return userID, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM user_tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, redisTokenPrefix+token); err != nil {
			log.Printf("evict token: %v", err)
		}
	}
	return nil
}

func (s *Service) findUser(ctx context.Context, name, dob string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, dob, pin_hash, failed_attempts, is_locked, created_at FROM users WHERE name = ? AND dob = ?",
		name, dob,
	).Scan(&u.ID, &u.Name, &u.DOB, &u.PinHash, &u.FailedAttempts, &u.IsLocked, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) createUser(ctx context.Context, name, dob, pin string) (*models.User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, dob, pin_hash, failed_attempts, is_locked, created_at) VALUES (?, ?, ?, 0, 0, ?)",
		name, dob, hashPin(pin), now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read new user id: %w", err)
	}
	return &models.User{
		ID:        id,
		Name:      name,
		DOB:       dob,
		PinHash:   hashPin(pin),
		CreatedAt: now,
	}, nil
}

func hashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}
