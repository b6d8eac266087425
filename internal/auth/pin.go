package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPIN    = errors.New("invalid pin")
	ErrNameRequired  = errors.New("multiple users share this pin, name is required")
	ErrNoMatchingPIN = errors.New("no user matches this pin")
)

// HashPIN hashes a PIN with bcrypt at the given cost (0 means default).
func HashPIN(pin string, cost int) (string, error) {
	if pin == "" {
		return "", ErrInvalidPIN
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

// CheckPIN reports whether pin matches the bcrypt hash.
func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// Candidate is a user that may own a PIN.
type Candidate struct {
	Identity Identity
	PinHash  string
}

// MatchPIN picks the user owning pin. When several users share the PIN,
// name selects among them.
func MatchPIN(candidates []Candidate, pin, name string) (Identity, error) {
	if pin == "" {
		return Identity{}, ErrInvalidPIN
	}

	var matches []Identity
	for _, c := range candidates {
		if CheckPIN(c.PinHash, pin) {
			matches = append(matches, c.Identity)
		}
	}

	switch len(matches) {
	case 0:
		return Identity{}, ErrNoMatchingPIN
	case 1:
		if name == "" || matches[0].Name == name {
			return matches[0], nil
		}
		return Identity{}, ErrNoMatchingPIN
	}

	if name == "" {
		return Identity{}, ErrNameRequired
	}
	for _, m := range matches {
		if m.Name == name {
			return m, nil
		}
	}
	return Identity{}, ErrNoMatchingPIN
}
