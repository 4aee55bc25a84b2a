package envflag

import (
	"os"
	"testing"
)

func setupEnv(key, value string) func() {
	os.Setenv(key, value)
	return func() { os.Unsetenv(key) }
}

func TestGetEnv(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "test-getenv")
	value := GetEnv("TEST_GETENV", "default")
	if value != "test-getenv" {
		t.Errorf("GetEnv failed: expected test-getenv got %s", value)
	}
	unset()
	value = GetEnv("TEST_GETENV", "default")
	if value != "default" {
		t.Errorf("GetEnv failed: expected default got %s", value)
	}
}
