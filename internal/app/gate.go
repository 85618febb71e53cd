package app

import (
	"fmt"

	"writing-game-service/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// TeacherGate compares a shared static passphrase. It is a placeholder, not a security boundary:
// there are no accounts, scopes or rotation.
type TeacherGate struct {
	hash []byte
}

// NewTeacherGate prefers a bcrypt hash; a plain passphrase is hashed once. With neither, the gate is open.
func NewTeacherGate(passphrase, passphraseHash string) (*TeacherGate, error) {
	if passphraseHash != "" {
		if _, err := bcrypt.Cost([]byte(passphraseHash)); err != nil {
			return nil, fmt.Errorf("teacher passphrase hash: %w", err)
		}
		return &TeacherGate{hash: []byte(passphraseHash)}, nil
	}
	if passphrase == "" {
		return &TeacherGate{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash teacher passphrase: %w", err)
	}
	return &TeacherGate{hash: hash}, nil
}

// Open reports whether no passphrase is configured.
func (g *TeacherGate) Open() bool {
	return len(g.hash) == 0
}

func (g *TeacherGate) Check(passphrase string) error {
	if g.Open() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)); err != nil {
		return domain.ErrUnauthorized
	}
	return nil
}
