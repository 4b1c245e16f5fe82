package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/pkg/logger"
)

// Profile is the verified identity pair handed over by the provider. The
// email is the stable identifier everything else keys on.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier exchanges an authorization code for a verified profile.
// Verification fails closed: any exchange or userinfo error yields
// ErrIdentity and no partial profile.
type IdentityVerifier interface {
	AuthCodeURL(state string) string
	Verify(ctx context.Context, code string) (*Profile, error)
}

type GoogleVerifier struct {
	oauth *oauth2.Config
}

func NewGoogleVerifier(cfg config.GoogleConfig) *GoogleVerifier {
	return &GoogleVerifier{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (g *GoogleVerifier) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

func (g *GoogleVerifier) Verify(ctx context.Context, code string) (*Profile, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, ErrIdentity
	}

	client := g.oauth.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, ErrIdentity
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logger.Warn("oauth_userinfo_failed", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return nil, ErrIdentity
	}

	var data struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, ErrIdentity
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", ErrIdentity)
	}

	return &Profile{Email: email, Name: data.Name, Picture: data.Picture}, nil
}

// GenerateState produces the opaque nonce round-tripped through the provider
// to bind callback to redirect.
func GenerateState() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(nonce), nil
}
