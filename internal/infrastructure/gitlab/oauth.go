package gitlab

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuthConfig holds the application credentials registered with GitLab.
type OAuthConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuth runs the authorization code flow against a GitLab instance.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth builds the flow for the instance at config.BaseURL.
func NewOAuth(config OAuthConfig) *OAuth {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{"api"}
	}

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth/authorize",
				TokenURL:  baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Enabled reports whether application credentials are configured.
func (o *OAuth) Enabled() bool {
	return o.config.ClientID != "" && o.config.ClientSecret != ""
}

// AuthCodeURL returns the provider page the user is sent to. state is
// echoed back on the callback.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gitlab: exchanging authorization code: %w", err)
	}
	return token, nil
}
