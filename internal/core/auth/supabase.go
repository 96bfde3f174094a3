package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseAuthenticator checks access tokens against a Supabase project.
type SupabaseAuthenticator struct {
	client *supabase.Client
}

// NewSupabaseAuthenticator connects to the project at url. For server-side
// validation key should be the service role key.
func NewSupabaseAuthenticator(url, key string) (*SupabaseAuthenticator, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseAuthenticator{client: client}, nil
}

func (a *SupabaseAuthenticator) Authenticate(_ context.Context, token string) (User, error) {
	if token == "" {
		return User{}, fmt.Errorf("%w: no token", ErrUnauthenticated)
	}
	// GetUser does not take a context; the request is bounded by the
	// client's own HTTP timeout.
	resp, err := a.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return User{ID: resp.ID.String(), Email: resp.Email}, nil
}
