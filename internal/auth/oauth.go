package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the portion of Google's userinfo response we care about.
// Google returns a larger object — we only unmarshal the fields we need to
// build a profile.
type GoogleUser struct {
	Sub     string `json:"sub"`     // Google's stable subject identifier
	Name    string `json:"name"`    // Display name
	Email   string `json:"email"`   // Verified email address
	Picture string `json:"picture"` // Avatar URL
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. The server redirects the user to Google's authorization endpoint.
// 2. The user approves the request on Google.
// 3. Google redirects back to the CallbackURL with a short-lived "code".
// 4. The server exchanges the code for an access token (server-to-server,
//    using the ClientSecret — the token never touches the browser).
// 5. The server uses the token to fetch the user's profile claims.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
// callbackURL must match one of the authorized redirect URIs configured in
// the Google Cloud console, e.g. "http://localhost:8080/auth/oauth-callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random string stored in a short-lived cookie before the
// redirect; the callback handler verifies it matches, which proves the
// callback was initiated by this server and not a CSRF attacker.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for the
// user's profile claims.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.Sub == "" || gUser.Email == "" {
		return nil, fmt.Errorf("auth: Google returned an incomplete profile")
	}

	return &gUser, nil
}
