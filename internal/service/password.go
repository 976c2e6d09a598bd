package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid password hash")

const (
	argon2Version     = 19
	argon2MemoryKiB   = 19 * 1024
	argon2Iterations  = 2
	argon2Parallelism = 1
	argon2SaltLength  = 16
	argon2KeyLength   = 32
)

// HashPassword returns an encoded Argon2id hash:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2MemoryKiB, argon2Parallelism, argon2KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version, argon2MemoryKiB, argon2Iterations, argon2Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches encodedHash.
func VerifyPassword(encodedHash, password string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false, ErrInvalidHash
	}

	var mem, it uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return false, ErrInvalidHash
	}
	// Hashes are produced locally; anything above our own cost is foreign.
	if mem == 0 || mem > argon2MemoryKiB || it == 0 || it > argon2Iterations || par == 0 || par > argon2Parallelism {
		return false, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := b64.DecodeString(parts[5])
	if err != nil || len(expected) != argon2KeyLength {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), salt, it, mem, par, argon2KeyLength)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// HashUsers replaces every plaintext password with its Argon2id hash.
func HashUsers(users map[string]string) (map[string]string, error) {
	hashed := make(map[string]string, len(users))
	for name, password := range users {
		h, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password of %s: %w", name, err)
		}
		hashed[name] = h
	}
	return hashed, nil
}
