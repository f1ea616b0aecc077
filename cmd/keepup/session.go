package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/keepup/keepup-api/pkg/client"
)

var errNotLoggedIn = errors.New("not logged in, run `keepup login` first")

func (o *rootOptions) newClient() (*client.Client, error) {
	return client.New(o.apiURL)
}

// resume restores the saved session. With required false a missing or
// rejected token yields an anonymous session instead of an error.
func (o *rootOptions) resume(ctx context.Context, required bool) (*client.Session, error) {
	c, err := o.newClient()
	if err != nil {
		return nil, err
	}
	sess := client.NewSession(c)

	token, err := o.readToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		if required {
			return nil, errNotLoggedIn
		}
		return sess, nil
	}

	if _, err := sess.Resume(ctx, token); err != nil {
		if client.StatusCode(err) == http.StatusUnauthorized {
			// Stale token: forget it.
			_ = o.removeToken()
			if required {
				return nil, errNotLoggedIn
			}
			return sess, nil
		}
		return nil, err
	}
	return sess, nil
}

func (o *rootOptions) readToken() (string, error) {
	b, err := os.ReadFile(o.tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (o *rootOptions) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(o.tokenFile), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(o.tokenFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (o *rootOptions) removeToken() error {
	if err := os.Remove(o.tokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
