package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "hogar")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_tokens_SaveLoadClear(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadTokens(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	exp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := saveTokens(tokenFile{AccessToken: "acc", RefreshToken: "ref", ExpiresAt: exp}); err != nil {
		t.Fatalf("saveTokens: %v", err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode %v, want 0600", st.Mode().Perm())
	}

	tf, err := loadTokens()
	if err != nil {
		t.Fatalf("loadTokens: %v", err)
	}
	if tf.AccessToken != "acc" || tf.RefreshToken != "ref" || !tf.ExpiresAt.Equal(exp) {
		t.Fatalf("loaded %+v", tf)
	}

	if err := clearTokens(); err != nil {
		t.Fatalf("clearTokens: %v", err)
	}
	if err := clearTokens(); err != nil {
		t.Fatalf("clearTokens twice: %v", err)
	}
	if _, err := loadTokens(); err == nil {
		t.Fatalf("want error after logout")
	}
}

func Test_loadTokens_EmptyFile(t *testing.T) {
	_ = withTmpConfig(t)
	if err := saveTokens(tokenFile{}); err != nil {
		t.Fatalf("saveTokens: %v", err)
	}
	if _, err := loadTokens(); err == nil {
		t.Fatalf("empty tokens must count as logged out")
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	printJSON(map[string]any{"name": "Mercado"})
	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "\n  \"name\": \"Mercado\"") {
		t.Fatalf("not indented: %q", buf.String())
	}
}

func Test_genPhoneKey(t *testing.T) {
	t.Parallel()
	a, err := genPhoneKey()
	if err != nil {
		t.Fatalf("genPhoneKey: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil || len(raw) != 32 {
		t.Fatalf("want 32 base64 bytes, got %d (%v)", len(raw), err)
	}
	b, _ := genPhoneKey()
	if a == b {
		t.Fatalf("keys must differ")
	}
}

func Test_envOr(t *testing.T) {
	t.Setenv("HOGAR_API", "")
	if got := envOr("HOGAR_API", "http://localhost:3000"); got != "http://localhost:3000" {
		t.Fatalf("default: %q", got)
	}
	t.Setenv("HOGAR_API", "https://api.example.com")
	if got := envOr("HOGAR_API", "x"); got != "https://api.example.com" {
		t.Fatalf("env: %q", got)
	}
}
