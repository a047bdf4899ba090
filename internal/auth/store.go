package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"backtomatic/internal/util"

	"golang.org/x/oauth2"
)

// Store keeps client secrets and tokens as JSON files in one directory.
type Store struct {
	Dir string
}

func NewStore(dir string) Store {
	return Store{Dir: dir}
}

func (s Store) SecretPath(provider string) string {
	return filepath.Join(s.Dir, provider+"_credentials.json")
}

func (s Store) TokenPath(provider string) string {
	return filepath.Join(s.Dir, provider+"_token.json")
}

func (s Store) LoadSecret(provider string) ([]byte, error) {
	b, err := os.ReadFile(s.SecretPath(provider))
	if err != nil {
		return nil, fmt.Errorf("%s not found in %s: %w", filepath.Base(s.SecretPath(provider)), s.Dir, err)
	}

	return b, nil
}

// ImportSecret copies a user-supplied client secret file into the store.
func (s Store) ImportSecret(provider, src string) (string, error) {
	b, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read client secret: %w", err)
	}

	if !json.Valid(b) {
		return "", fmt.Errorf("client secret %s is not valid JSON", src)
	}

	dst := s.SecretPath(provider)
	if err := util.CopyFile(src, dst, 0600); err != nil {
		return "", fmt.Errorf("failed to save client secret: %w", err)
	}

	return dst, nil
}

func (s Store) SaveToken(provider string, token *oauth2.Token) error {
	b, err := json.Marshal(token)
	if err != nil {
		return err
	}

	if err := util.AtomicWrite(s.TokenPath(provider), bytes.NewReader(b), 0600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

func (s Store) LoadToken(provider string) (*oauth2.Token, error) {
	b, err := os.ReadFile(s.TokenPath(provider))
	if err != nil {
		return nil, fmt.Errorf("%s auth needed: %w", provider, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return &token, nil
}
