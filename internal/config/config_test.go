package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testOwner  = "0x00000000000000000000000000000000000000f0"
	testCaller = "0x0000000000000000000000000000000000000001"
	testJWKS   = "https://idp.local/realms/artstore/protocol/openid-connect/certs"
)

// allKeys — все ключи конфигурации, очищаемые перед тестом.
var allKeys = []string{
	keyPort, keyLogLevel, keyLogFormat,
	keyHTTPReadTimeout, keyHTTPWriteTimeout, keyHTTPIdleTimeout, keyShutdownTimeout,
	keyOwnerAddress, keyAuthorizedCallers, keyRegistryAddress, keyMetadataServiceAddress,
	keyCacheDefaultTTL, keyCacheMaxTTL, keyCacheMaxEntries, keyMulticallMaxOperations,
	keyJWKSURL, keyJWKSCACert, keyJWKSClientTimeout, keyJWKSRefreshInterval,
	keyJWTLeeway, keyJWTIssuer,
	keyDephealthEnabled, keyDephealthGroup, keyDephealthCheckInterval,
}

// setupEnv очищает RM_* и задаёт обязательные параметры плюс vars.
// Пустое значение viper считает незаданным.
func setupEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(envName(k), "")
	}
	t.Setenv("RM_CONFIG_FILE", "")
	t.Setenv("RM_OWNER_ADDRESS", testOwner)
	t.Setenv("RM_JWKS_URL", testJWKS)
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	setupEnv(t, nil)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидалось 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "json" {
		t.Errorf("логирование = %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.HTTPReadTimeout != 30*time.Second || cfg.HTTPWriteTimeout != 60*time.Second ||
		cfg.HTTPIdleTimeout != 120*time.Second || cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("таймауты = %v/%v/%v/%v", cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout, cfg.ShutdownTimeout)
	}
	if cfg.CacheDefaultTTL != 5*time.Minute || cfg.CacheMaxTTL != 24*time.Hour {
		t.Errorf("TTL = %v/%v", cfg.CacheDefaultTTL, cfg.CacheMaxTTL)
	}
	if cfg.CacheMaxEntries != 100000 || cfg.MulticallMaxOperations != 256 {
		t.Errorf("лимиты = %d/%d", cfg.CacheMaxEntries, cfg.MulticallMaxOperations)
	}
	if cfg.JWKSClientTimeout != 10*time.Second || cfg.JWKSRefreshInterval != 15*time.Minute || cfg.JWTLeeway != 5*time.Second {
		t.Errorf("JWT = %v/%v/%v", cfg.JWKSClientTimeout, cfg.JWKSRefreshInterval, cfg.JWTLeeway)
	}
	if cfg.DephealthEnabled || cfg.DephealthGroup != "goartstore" || cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("dephealth = %v/%s/%v", cfg.DephealthEnabled, cfg.DephealthGroup, cfg.DephealthCheckInterval)
	}
	if cfg.OwnerAddress.Hex() != testOwner {
		t.Errorf("OwnerAddress = %s", cfg.OwnerAddress)
	}
	if len(cfg.AuthorizedCallers) != 0 || !cfg.RegistryAddress.IsZero() {
		t.Errorf("ожидались пустые callers и registry")
	}
}

// TestLoad_Overrides проверяет переопределение через окружение.
func TestLoad_Overrides(t *testing.T) {
	setupEnv(t, map[string]string{
		"RM_PORT":                     "9000",
		"RM_LOG_LEVEL":                "debug",
		"RM_LOG_FORMAT":               "text",
		"RM_AUTHORIZED_CALLERS":       testCaller + ", 0x0000000000000000000000000000000000000002",
		"RM_REGISTRY_ADDRESS":         "0x00000000000000000000000000000000000000aa",
		"RM_CACHE_DEFAULT_TTL":        "1m",
		"RM_CACHE_MAX_TTL":            "1h",
		"RM_MULTICALL_MAX_OPERATIONS": "8",
		"RM_JWT_ISSUER":               "https://idp.local/realms/artstore",
		"RM_DEPHEALTH_ENABLED":        "true",
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 9000 || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("сервер = %d/%v/%s", cfg.Port, cfg.LogLevel, cfg.LogFormat)
	}
	if len(cfg.AuthorizedCallers) != 2 || cfg.AuthorizedCallers[0].Hex() != testCaller {
		t.Errorf("AuthorizedCallers = %v", cfg.AuthorizedCallers)
	}
	if cfg.RegistryAddress.IsZero() {
		t.Error("RegistryAddress не задан")
	}
	if cfg.CacheDefaultTTL != time.Minute || cfg.CacheMaxTTL != time.Hour || cfg.MulticallMaxOperations != 8 {
		t.Errorf("кэш = %v/%v/%d", cfg.CacheDefaultTTL, cfg.CacheMaxTTL, cfg.MulticallMaxOperations)
	}
	if cfg.JWTIssuer != "https://idp.local/realms/artstore" || !cfg.DephealthEnabled {
		t.Errorf("JWT/dephealth = %q/%v", cfg.JWTIssuer, cfg.DephealthEnabled)
	}
}

// TestLoad_Invalid проверяет ошибки валидации.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantKey string
	}{
		{"нет владельца", map[string]string{"RM_OWNER_ADDRESS": ""}, "RM_OWNER_ADDRESS"},
		{"нулевой владелец", map[string]string{"RM_OWNER_ADDRESS": "0x0000000000000000000000000000000000000000"}, "RM_OWNER_ADDRESS"},
		{"владелец не адрес", map[string]string{"RM_OWNER_ADDRESS": "owner"}, "RM_OWNER_ADDRESS"},
		{"нет JWKS", map[string]string{"RM_JWKS_URL": ""}, "RM_JWKS_URL"},
		{"порт не число", map[string]string{"RM_PORT": "abc"}, "RM_PORT"},
		{"порт вне диапазона", map[string]string{"RM_PORT": "70000"}, "RM_PORT"},
		{"уровень логов", map[string]string{"RM_LOG_LEVEL": "trace"}, "RM_LOG_LEVEL"},
		{"формат логов", map[string]string{"RM_LOG_FORMAT": "xml"}, "RM_LOG_FORMAT"},
		{"длительность", map[string]string{"RM_HTTP_READ_TIMEOUT": "30"}, "RM_HTTP_READ_TIMEOUT"},
		{"нулевой max TTL", map[string]string{"RM_CACHE_MAX_TTL": "0s"}, "RM_CACHE_MAX_TTL"},
		{"default TTL больше max", map[string]string{"RM_CACHE_DEFAULT_TTL": "2h", "RM_CACHE_MAX_TTL": "1h"}, "RM_CACHE_DEFAULT_TTL"},
		{"размер кэша", map[string]string{"RM_CACHE_MAX_ENTRIES": "0"}, "RM_CACHE_MAX_ENTRIES"},
		{"лимит multicall", map[string]string{"RM_MULTICALL_MAX_OPERATIONS": "-1"}, "RM_MULTICALL_MAX_OPERATIONS"},
		{"нулевой caller", map[string]string{"RM_AUTHORIZED_CALLERS": "0x0000000000000000000000000000000000000000"}, "RM_AUTHORIZED_CALLERS"},
		{"caller не адрес", map[string]string{"RM_AUTHORIZED_CALLERS": testCaller + ",bad"}, "RM_AUTHORIZED_CALLERS"},
		{"отрицательный leeway", map[string]string{"RM_JWT_LEEWAY": "-1s"}, "RM_JWT_LEEWAY"},
		{"dephealth bool", map[string]string{"RM_DEPHEALTH_ENABLED": "maybe"}, "RM_DEPHEALTH_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, tt.vars)
			_, err := Load("")
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("ошибка %q не содержит %s", err, tt.wantKey)
			}
		})
	}
}

// TestLoad_File проверяет чтение YAML-файла и приоритет окружения.
func TestLoad_File(t *testing.T) {
	setupEnv(t, map[string]string{"RM_PORT": "9100"})

	path := filepath.Join(t.TempDir(), "resolver.yaml")
	content := `port: 8045
log_format: text
cache_default_ttl: 2m
authorized_callers:
  - "` + testCaller + `"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, окружение должно перекрывать файл", cfg.Port)
	}
	if cfg.LogFormat != "text" || cfg.CacheDefaultTTL != 2*time.Minute {
		t.Errorf("значения файла не применены: %s/%v", cfg.LogFormat, cfg.CacheDefaultTTL)
	}
	if len(cfg.AuthorizedCallers) != 1 {
		t.Errorf("AuthorizedCallers = %v", cfg.AuthorizedCallers)
	}
}

// TestLoad_MissingFile проверяет ошибку для несуществующего файла.
func TestLoad_MissingFile(t *testing.T) {
	setupEnv(t, nil)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ожидалась ошибка чтения файла")
	}
}
