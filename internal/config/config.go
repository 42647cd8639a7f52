// Пакет config — загрузка и валидация конфигурации Resolver Module
// из переменных окружения (префикс RM_) и необязательного YAML-файла.
// Переменные окружения имеют приоритет над файлом.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// envPrefix — префикс переменных окружения.
const envPrefix = "RM"

// Ключи конфигурации. В окружении — RM_<KEY в верхнем регистре>,
// в YAML-файле — ключ как есть.
const (
	keyPort                   = "port"
	keyLogLevel               = "log_level"
	keyLogFormat              = "log_format"
	keyHTTPReadTimeout        = "http_read_timeout"
	keyHTTPWriteTimeout       = "http_write_timeout"
	keyHTTPIdleTimeout        = "http_idle_timeout"
	keyShutdownTimeout        = "shutdown_timeout"
	keyOwnerAddress           = "owner_address"
	keyAuthorizedCallers      = "authorized_callers"
	keyRegistryAddress        = "registry_address"
	keyMetadataServiceAddress = "metadata_service_address"
	keyCacheDefaultTTL        = "cache_default_ttl"
	keyCacheMaxTTL            = "cache_max_ttl"
	keyCacheMaxEntries        = "cache_max_entries"
	keyMulticallMaxOperations = "multicall_max_operations"
	keyJWKSURL                = "jwks_url"
	keyJWKSCACert             = "jwks_ca_cert"
	keyJWKSClientTimeout      = "jwks_client_timeout"
	keyJWKSRefreshInterval    = "jwks_refresh_interval"
	keyJWTLeeway              = "jwt_leeway"
	keyJWTIssuer              = "jwt_issuer"
	keyDephealthEnabled       = "dephealth_enabled"
	keyDephealthGroup         = "dephealth_group"
	keyDephealthCheckInterval = "dephealth_check_interval"
)

// Config содержит все параметры конфигурации Resolver Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Авторизация ---

	// Владелец резолвера (обязателен, ненулевой адрес)
	OwnerAddress model.Address
	// Начальный список авторизованных вызывающих
	AuthorizedCallers []model.Address
	// Адрес реестра DAO (нулевой — не задан)
	RegistryAddress model.Address
	// Адрес сервиса метаданных (нулевой — не задан)
	MetadataServiceAddress model.Address

	// --- Кэш ---

	CacheDefaultTTL time.Duration
	CacheMaxTTL     time.Duration
	CacheMaxEntries int

	// --- Multicall ---

	// Максимум операций в одном пакете
	MulticallMaxOperations int

	// --- JWT ---

	// URL JWKS endpoint провайдера идентификации (обязателен)
	JWKSURL string
	// Путь к CA-сертификату для TLS к JWKS endpoint (пусто — системные CA)
	JWKSCACert string
	// Таймаут HTTP-клиента JWKS (по умолчанию 10s)
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS (по умолчанию 15m)
	JWKSRefreshInterval time.Duration
	// Допуск расхождения часов при проверке exp/nbf (по умолчанию 5s)
	JWTLeeway time.Duration
	// Ожидаемый iss (пусто — не проверяется)
	JWTIssuer string

	// --- Topologymetrics ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию. configFile — путь к YAML-файлу;
// пустая строка — RM_CONFIG_FILE или только окружение.
// Возвращает ошибку, если обязательные параметры не заданы
// или значения некорректны.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// --- Сервер ---

	cfg.Port, err = getInt(v, keyPort)
	if err != nil {
		return nil, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%s: порт вне диапазона 1-65535: %d", envName(keyPort), cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envName(keyLogLevel), err)
	}

	cfg.LogFormat = strings.ToLower(v.GetString(keyLogFormat))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("%s: недопустимый формат %q, допустимые: json, text", envName(keyLogFormat), cfg.LogFormat)
	}

	// --- HTTP Server Timeouts и shutdown ---

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{keyHTTPReadTimeout, &cfg.HTTPReadTimeout},
		{keyHTTPWriteTimeout, &cfg.HTTPWriteTimeout},
		{keyHTTPIdleTimeout, &cfg.HTTPIdleTimeout},
		{keyShutdownTimeout, &cfg.ShutdownTimeout},
		{keyCacheDefaultTTL, &cfg.CacheDefaultTTL},
		{keyCacheMaxTTL, &cfg.CacheMaxTTL},
		{keyJWKSClientTimeout, &cfg.JWKSClientTimeout},
		{keyJWKSRefreshInterval, &cfg.JWKSRefreshInterval},
		{keyDephealthCheckInterval, &cfg.DephealthCheckInterval},
	} {
		*d.dst, err = getPositiveDuration(v, d.key)
		if err != nil {
			return nil, err
		}
	}

	cfg.JWTLeeway, err = getDuration(v, keyJWTLeeway)
	if err != nil {
		return nil, err
	}
	if cfg.JWTLeeway < 0 {
		return nil, fmt.Errorf("%s: значение должно быть >= 0", envName(keyJWTLeeway))
	}

	// --- Авторизация ---

	cfg.OwnerAddress, err = getAddress(v, keyOwnerAddress)
	if err != nil {
		return nil, err
	}
	if cfg.OwnerAddress.IsZero() {
		return nil, fmt.Errorf("%s: обязательный ненулевой адрес владельца не задан", envName(keyOwnerAddress))
	}

	cfg.AuthorizedCallers, err = getAddressList(v, keyAuthorizedCallers)
	if err != nil {
		return nil, err
	}

	cfg.RegistryAddress, err = getAddress(v, keyRegistryAddress)
	if err != nil {
		return nil, err
	}
	cfg.MetadataServiceAddress, err = getAddress(v, keyMetadataServiceAddress)
	if err != nil {
		return nil, err
	}

	// --- Кэш и multicall ---

	if cfg.CacheDefaultTTL > cfg.CacheMaxTTL {
		return nil, fmt.Errorf("%s (%s) превышает %s (%s)",
			envName(keyCacheDefaultTTL), cfg.CacheDefaultTTL, envName(keyCacheMaxTTL), cfg.CacheMaxTTL)
	}

	cfg.CacheMaxEntries, err = getPositiveInt(v, keyCacheMaxEntries)
	if err != nil {
		return nil, err
	}
	cfg.MulticallMaxOperations, err = getPositiveInt(v, keyMulticallMaxOperations)
	if err != nil {
		return nil, err
	}

	// --- JWT ---

	cfg.JWKSURL = strings.TrimSpace(v.GetString(keyJWKSURL))
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("%s: обязательный параметр не задан", envName(keyJWKSURL))
	}
	cfg.JWKSCACert = v.GetString(keyJWKSCACert)
	cfg.JWTIssuer = v.GetString(keyJWTIssuer)

	// --- Topologymetrics ---

	cfg.DephealthEnabled, err = getBool(v, keyDephealthEnabled)
	if err != nil {
		return nil, err
	}
	cfg.DephealthGroup = v.GetString(keyDephealthGroup)

	return cfg, nil
}

// newViper создаёт экземпляр viper со значениями по умолчанию,
// окружением RM_* и, если задан, YAML-файлом.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("чтение файла конфигурации %s: %w", configFile, err)
		}
	}
	return v, nil
}

// setDefaults задаёт значения по умолчанию для необязательных параметров.
func setDefaults(v *viper.Viper) {
	v.SetDefault(keyPort, 8040)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "json")
	v.SetDefault(keyHTTPReadTimeout, "30s")
	v.SetDefault(keyHTTPWriteTimeout, "60s")
	v.SetDefault(keyHTTPIdleTimeout, "120s")
	v.SetDefault(keyShutdownTimeout, "5s")
	v.SetDefault(keyCacheDefaultTTL, "5m")
	v.SetDefault(keyCacheMaxTTL, "24h")
	v.SetDefault(keyCacheMaxEntries, 100000)
	v.SetDefault(keyMulticallMaxOperations, 256)
	v.SetDefault(keyJWKSClientTimeout, "10s")
	v.SetDefault(keyJWKSRefreshInterval, "15m")
	v.SetDefault(keyJWTLeeway, "5s")
	v.SetDefault(keyDephealthEnabled, false)
	v.SetDefault(keyDephealthGroup, "goartstore")
	v.SetDefault(keyDephealthCheckInterval, "15s")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// envName возвращает имя переменной окружения для ключа.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}

// getInt возвращает целочисленное значение параметра.
func getInt(v *viper.Viper, key string) (int, error) {
	val := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", envName(key), val)
	}
	return n, nil
}

// getPositiveInt возвращает целое значение > 0.
func getPositiveInt(v *viper.Viper, key string) (int, error) {
	n, err := getInt(v, key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть > 0", envName(key))
	}
	return n, nil
}

// getDuration возвращает time.Duration параметра.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	val := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", envName(key), val)
	}
	return d, nil
}

// getPositiveDuration возвращает time.Duration > 0.
func getPositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := getDuration(v, key)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть > 0", envName(key))
	}
	return d, nil
}

// getBool возвращает булево значение параметра.
func getBool(v *viper.Viper, key string) (bool, error) {
	val := strings.TrimSpace(v.GetString(key))
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: некорректное булево значение: %q (допустимые: true, false, 1, 0)", envName(key), val)
	}
	return b, nil
}

// getAddress разбирает адрес; пустое значение — нулевой адрес.
func getAddress(v *viper.Viper, key string) (model.Address, error) {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return model.Address{}, nil
	}
	addr, err := model.ParseAddress(val)
	if err != nil {
		return model.Address{}, fmt.Errorf("%s: %w", envName(key), err)
	}
	return addr, nil
}

// errZeroCaller — нулевой адрес в списке авторизованных.
var errZeroCaller = errors.New("нулевой адрес недопустим")

// getAddressList разбирает список адресов: через запятую в окружении
// или YAML-список в файле.
func getAddressList(v *viper.Viper, key string) ([]model.Address, error) {
	var items []string
	for _, raw := range v.GetStringSlice(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	}

	out := make([]model.Address, 0, len(items))
	for _, item := range items {
		addr, err := model.ParseAddress(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", envName(key), item, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("%s: %w", envName(key), errZeroCaller)
		}
		out = append(out, addr)
	}
	return out, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
