package database

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// FirebaseConfig identifies the Firebase project backing auth and Firestore.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

// ConnectFirebase initialises the Firebase Admin application.
func ConnectFirebase(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	var conf *firebase.Config
	if cfg.ProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}

	return app, nil
}
