package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	authService "github.com/allisson/boltgate/internal/auth/service"
)

// RunHashAdminToken prints the Argon2id hash to place in ADMIN_TOKEN_HASH. When token is
// empty a random token is generated and printed once alongside its hash.
func RunHashAdminToken(
	tokenService authService.AdminTokenService,
	logger *slog.Logger,
	writer io.Writer,
	token string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	generated := token == ""

	var tokenHash string
	var err error
	if generated {
		token, tokenHash, err = tokenService.GenerateToken()
		if err != nil {
			return fmt.Errorf("failed to generate admin token: %w", err)
		}
	} else {
		tokenHash, err = tokenService.HashToken(token)
		if err != nil {
			return fmt.Errorf("failed to hash admin token: %w", err)
		}
	}

	logger.Info("admin token hash created", slog.Bool("generated", generated))

	if format == "json" {
		result := map[string]any{"token_hash": tokenHash}
		if generated {
			result["token"] = token
		}
		return writeJSON(writer, result)
	}

	if generated {
		_, _ = fmt.Fprintf(writer, "Admin token (shown once): %s\n", token)
	}
	_, _ = fmt.Fprintf(writer, "ADMIN_TOKEN_HASH=%s\n", tokenHash)
	return nil
}
