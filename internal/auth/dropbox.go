package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

const DropboxName = "dropbox"

type dropboxCredentials struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
}

var dropboxEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.dropbox.com/oauth2/authorize",
	TokenURL: "https://api.dropboxapi.com/oauth2/token",
}

// NewDropbox uses a fixed loopback redirect because Dropbox only accepts
// redirect URIs registered on the app.
func NewDropbox(store Store, opts ...Option) *Provider {
	opts = append([]Option{WithListenAddr("localhost:9999")}, opts...)

	p := newProvider(DropboxName, store, parseDropboxSecret, opts)
	p.callbackPath = "/callback"
	p.authParams = []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("token_access_type", "offline"),
	}

	return p
}

func parseDropboxSecret(secret []byte) (*oauth2.Config, error) {
	var creds dropboxCredentials
	if err := json.Unmarshal(secret, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse dropbox credentials: %w", err)
	}

	if creds.AppKey == "" || creds.AppSecret == "" {
		return nil, errors.New("dropbox credentials need app_key and app_secret")
	}

	return &oauth2.Config{
		ClientID:     creds.AppKey,
		ClientSecret: creds.AppSecret,
		Endpoint:     dropboxEndpoint,
		Scopes:       []string{"files.content.write"},
	}, nil
}
