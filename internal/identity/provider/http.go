package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// HTTPProvider talks to the identity provider's REST API.
type HTTPProvider struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// NewHTTPProvider returns a provider client for the given base URL and
// client credentials.
func NewHTTPProvider(baseURL, clientID, clientSecret string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
	}
}

// ValidateIdentityToken asks the provider to verify the token and return the
// profile it asserts. A 401/403 from the provider maps to
// ErrInvalidIdentityToken; anything else non-2xx is a transport error.
func (p *HTTPProvider) ValidateIdentityToken(ctx context.Context, identityToken string) (*Profile, error) {
	var out struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	status, err := p.postJSON(ctx, "/oauth/userinfo", map[string]string{"token": identityToken}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, ErrInvalidIdentityToken
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("identity provider: userinfo status=%d", status)
	}
	if out.Sub == "" {
		return nil, ErrInvalidIdentityToken
	}
	return &Profile{
		Subject:       out.Sub,
		Email:         out.Email,
		EmailVerified: out.EmailVerified,
		GivenName:     out.GivenName,
		FamilyName:    out.FamilyName,
		Name:          out.Name,
		AvatarURL:     out.Picture,
	}, nil
}

// ExchangeAuthorizationCode redeems an authorization code for provider tokens.
func (p *HTTPProvider) ExchangeAuthorizationCode(ctx context.Context, code string) (*TokenExchange, error) {
	var out TokenExchange
	status, err := p.postJSON(ctx, "/oauth/token", map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"client_id":     p.ClientID,
		"client_secret": p.ClientSecret,
	}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return nil, ErrInvalidIdentityToken
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("identity provider: token exchange status=%d", status)
	}
	if out.IDToken == "" {
		return nil, ErrInvalidIdentityToken
	}
	return &out, nil
}

// NotifyLogout tells the provider the user logged out locally.
func (p *HTTPProvider) NotifyLogout(ctx context.Context, userID string) error {
	status, err := p.postJSON(ctx, "/oauth/logout", map[string]string{
		"user_id":   userID,
		"client_id": p.ClientID,
	}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("identity provider: logout status=%d", status)
	}
	return nil
}

func (p *HTTPProvider) postJSON(ctx context.Context, path string, body map[string]string, out interface{}) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
