package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".gemini-video-analyzer"
	credentialFile = "credentials.gpg"
)

// ErrNoAPIKey is returned when no source provides a key.
var ErrNoAPIKey = errors.New("API key not found")

// Source names where a key came from.
type Source string

const (
	SourceSettings Source = "settings"
	SourceEnv      Source = "environment"
	SourceSSM      Source = "ssm"
	SourceGPG      Source = "gpg"
)

// Options lists the optional key sources consulted by GetAPIKey.
type Options struct {
	// Override is a key saved in the settings file or given on the command line.
	Override string
	// SSMParam is the SecureString parameter holding the key. Empty disables SSM.
	SSMParam string
	// SSM reads SSMParam. Nil means a client built from the default AWS config.
	SSM ParameterGetter
	// Region overrides the AWS region for the default SSM client.
	Region string
}

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. Options.Override
//  2. GEMINI_API_KEY environment variable
//  3. GOOGLE_API_KEY environment variable
//  4. SSM Parameter Store, when Options.SSMParam is set
//  5. GPG-encrypted file at ~/.gemini-video-analyzer/credentials.gpg
func GetAPIKey(ctx context.Context, opts Options) (string, Source, error) {
	if key := strings.TrimSpace(opts.Override); key != "" {
		log.Debug().Msg("Using API key from settings")
		return key, SourceSettings, nil
	}
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			log.Debug().Str("variable", env).Msg("Using API key from environment variable")
			return key, SourceEnv, nil
		}
	}

	var errs []error
	if opts.SSMParam != "" {
		getter := opts.SSM
		if getter == nil {
			client, err := NewSSMClient(ctx, opts.Region)
			if err != nil {
				errs = append(errs, err)
			} else {
				getter = client
			}
		}
		if getter != nil {
			key, err := LoadFromSSM(ctx, getter, opts.SSMParam)
			if err == nil && key != "" {
				return key, SourceSSM, nil
			}
			errs = append(errs, err)
		}
	}

	key, err := getFromGPG(ctx)
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, SourceGPG, nil
	}
	errs = append(errs, err)

	log.Debug().Err(errors.Join(errs...)).Msg("No API key source available")
	return "", "", fmt.Errorf("%w. Set GEMINI_API_KEY, save a key with 'video-analyzer config set api_key', or store it at ~/%s/%s",
		ErrNoAPIKey, credentialDir, credentialFile)
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG(ctx context.Context) (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	// Build GPG command with optional passphrase file for non-interactive use
	args := []string{"--decrypt", "--quiet"}

	if passphrasePath, err := getPassphrasePath(); err == nil {
		if fi, statErr := os.Stat(passphrasePath); statErr == nil {
			// Passphrase file must be owner-only
			mode := fi.Mode().Perm()
			if mode&0077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				log.Debug().Str("passphrase_file", passphrasePath).Msg("Using passphrase file for GPG decryption")
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	output, err := exec.CommandContext(ctx, "gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, credentialFile), nil
}

// getPassphrasePath returns the path to the GPG passphrase file, looked up
// next to the executable first and then in the working directory.
func getPassphrasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	passphrasePath := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
	if _, err := os.Stat(passphrasePath); err == nil {
		return passphrasePath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, ".gpg-passphrase"), nil
}
