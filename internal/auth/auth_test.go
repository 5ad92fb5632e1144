package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	value string
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
}

func TestGetAPIKeyPriority(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("GOOGLE_API_KEY", "env-google")

	key, src, err := GetAPIKey(context.Background(), Options{Override: "saved-key"})
	if err != nil || key != "saved-key" || src != SourceSettings {
		t.Errorf("expected settings key, got %q from %s (%v)", key, src, err)
	}

	key, src, err = GetAPIKey(context.Background(), Options{})
	if err != nil || key != "env-gemini" || src != SourceEnv {
		t.Errorf("expected GEMINI_API_KEY, got %q from %s (%v)", key, src, err)
	}

	t.Setenv("GEMINI_API_KEY", "")
	key, _, err = GetAPIKey(context.Background(), Options{})
	if err != nil || key != "env-google" {
		t.Errorf("expected GOOGLE_API_KEY, got %q (%v)", key, err)
	}
}

func TestGetAPIKeyFromSSM(t *testing.T) {
	clearKeyEnv(t)
	fake := &fakeSSM{value: "ssm-key"}

	key, src, err := GetAPIKey(context.Background(), Options{SSMParam: "/app/key", SSM: fake})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "ssm-key" || src != SourceSSM {
		t.Errorf("expected SSM key, got %q from %s", key, src)
	}
	if aws.ToString(fake.input.Name) != "/app/key" || !aws.ToBool(fake.input.WithDecryption) {
		t.Errorf("unexpected SSM request %+v", fake.input)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	clearKeyEnv(t)

	_, _, err := GetAPIKey(context.Background(), Options{SSMParam: "/app/key", SSM: &fakeSSM{err: errors.New("access denied")}})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := filepath.Join(home, ".gemini-video-analyzer", "credentials.gpg")
	if path != expected {
		t.Errorf("expected path %q, got %q", expected, path)
	}
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := getFromGPG(context.Background())
	if err == nil {
		t.Error("expected error when credentials file does not exist")
	}
}

func TestLoadFromSSMEmptyValue(t *testing.T) {
	_, err := LoadFromSSM(context.Background(), &emptySSM{}, "/app/key")
	if err == nil {
		t.Error("expected error for a parameter without a value")
	}
}

type emptySSM struct{}

func (emptySSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return &ssm.GetParameterOutput{}, nil
}
