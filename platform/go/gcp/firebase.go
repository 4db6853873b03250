package gcp

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// CredentialsPathEnv points at a service-account JSON file for local runs.
// Deployed environments rely on ambient application-default credentials.
const CredentialsPathEnv = "FIREBASE_CONFIG"

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context) (*firebase.App, *firebaseauth.Client, error) {
	var opts []option.ClientOption
	if path, ok := os.LookupEnv(CredentialsPathEnv); ok && path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init firebase app: %w", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init firebase auth: %w", err)
	}

	return app, fbAuth, nil
}
