// Command token-generator mints bearer tokens for local development and
// manual testing. It signs with the configured auth.jwt_secret, so tokens
// are accepted by a server running with the same configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
)

func main() {
	userID := flag.Int64("user", 1, "user ID carried in the token subject")
	role := flag.String("role", auth.RoleUser, "token role (user or admin)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	token, err := generate(context.Background(), cfg.Auth, *userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func generate(ctx context.Context, cfg config.AuthConfig, userID int64, role string) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("user ID must be positive, got %d", userID)
	}

	svc, err := auth.NewJWTService(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	token, err := svc.GenerateToken(ctx, userID, role)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}
