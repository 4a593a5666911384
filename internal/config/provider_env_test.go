package config

import (
	"context"
	"os"
	"testing"
)

func TestEnvVarProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = NewEnvVarProvider()
}

func TestEnvVarProviderReturnsSetVariables(t *testing.T) {
	t.Setenv("LAWNCARE_TEST_SECRET_A", "value-alpha")
	t.Setenv("LAWNCARE_TEST_SECRET_B", "value-beta")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"LAWNCARE_TEST_SECRET_A", "LAWNCARE_TEST_SECRET_B"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}
	if len(result) != 2 || result["LAWNCARE_TEST_SECRET_A"] != "value-alpha" || result["LAWNCARE_TEST_SECRET_B"] != "value-beta" {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestEnvVarProviderOmitsMissingVariables(t *testing.T) {
	const missingKey = "LAWNCARE_TEST_DEFINITELY_NOT_SET"
	os.Unsetenv(missingKey)

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{missingKey})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result for missing key, got %v", result)
	}
}

func TestEnvVarProviderKeepsEmptyValues(t *testing.T) {
	t.Setenv("LAWNCARE_TEST_EMPTY", "")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{"LAWNCARE_TEST_EMPTY"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}
	if v, ok := result["LAWNCARE_TEST_EMPTY"]; !ok || v != "" {
		t.Errorf("set-but-empty variable should be returned as empty string, got %v", result)
	}
}
