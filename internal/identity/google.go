package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	goption "google.golang.org/api/option"
)

// GoogleSignIn implements the "Continue with Google" flow: redirect to the
// consent screen, exchange the callback code, read the verified profile, and
// hand the identity to the local provider.
type GoogleSignIn struct {
	cfg      *oauth2.Config
	provider *LocalProvider
}

// NewGoogleFromEnv builds the flow from environment variables.
// Required: GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE (the OAuth
// client downloaded from the Google console). Optional:
// GOOGLE_OAUTH_REDIRECT_URL (default http://localhost:8081/auth/google/callback).
func NewGoogleFromEnv(provider *LocalProvider) (*GoogleSignIn, error) {
	clientJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var b []byte
	var err error
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing Google OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	cfg, err := google.ConfigFromJSON(b,
		googleoauth.UserinfoEmailScope,
		googleoauth.UserinfoProfileScope,
	)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	redirect := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"))
	if redirect == "" {
		redirect = "http://localhost:8081/auth/google/callback"
	}
	cfg.RedirectURL = redirect

	return &GoogleSignIn{cfg: cfg, provider: provider}, nil
}

// AuthURL returns the consent-screen URL for the given anti-forgery state.
func (g *GoogleSignIn) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the user's verified profile and
// signs the user in, creating the account on first use.
func (g *GoogleSignIn) Exchange(ctx context.Context, code string) (*Session, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	svc, err := googleoauth.NewService(ctx,
		goption.WithTokenSource(g.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	return g.provider.SignInExternal(ctx, info.Email, info.Name)
}
