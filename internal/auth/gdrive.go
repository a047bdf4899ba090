package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const GDriveName = "gdrive"

// NewGDrive returns a provider limited to files the application created.
func NewGDrive(store Store, opts ...Option) *Provider {
	return newProvider(GDriveName, store, parseGoogleSecret, opts)
}

func parseGoogleSecret(secret []byte) (*oauth2.Config, error) {
	return google.ConfigFromJSON(secret, drive.DriveFileScope)
}
