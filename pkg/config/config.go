package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Verifactu VerifactuConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL (opcional: guarda el estado de los eventos).
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	Enabled     bool
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con la contraseña escapada.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// VerifactuConfig cadena de huellas y envío a la AEAT.
type VerifactuConfig struct {
	LedgerRoot    string // directorio raíz de la cadena (obligatorio)
	HashAlgorithm string
	HashEncoding  string
	Timezone      string
	Env           string // dev (simulado), test, prod

	CertPath     string // .p12 o certificado PEM
	CertKeyPath  string // llave PEM si CertPath es solo el certificado
	CertPassword string

	TickSeconds        int
	DefaultWaitSeconds int
	MaxBatch           int
	AuditEnabled       bool

	System SystemConfig
}

// SystemConfig datos del sistema informático que se declaran en cada registro.
type SystemConfig struct {
	NIF                string // NIF del productor
	Name               string // razón social del productor
	SystemName         string
	SystemID           string
	Version            string
	InstallationNumber string
}

// Location zona horaria en la que se generan las marcas de tiempo.
func (c VerifactuConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: zona horaria %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// ErrInvalidConfig configuración incompleta o incoherente; la aplicación no debe arrancar.
var ErrInvalidConfig = errors.New("configuración inválida")

// Validate comprueba lo que impide arrancar. Algoritmo y codificación de la huella
// los valida quien construye el calculador.
func (c *Config) Validate() error {
	var errs []error
	v := c.Verifactu
	if strings.TrimSpace(v.LedgerRoot) == "" {
		errs = append(errs, errors.New("VERIFACTU_LEDGER_ROOT es obligatorio"))
	} else if err := os.MkdirAll(v.LedgerRoot, 0o755); err != nil {
		errs = append(errs, fmt.Errorf("VERIFACTU_LEDGER_ROOT no se puede crear: %v", err))
	}
	if _, err := v.Location(); err != nil {
		errs = append(errs, err)
	}
	switch v.Env {
	case "dev", "test", "prod":
	default:
		errs = append(errs, fmt.Errorf("VERIFACTU_ENV desconocido %q (dev, test o prod)", v.Env))
	}
	if v.Env != "dev" && v.CertPath == "" {
		errs = append(errs, fmt.Errorf("VERIFACTU_CERT_PATH es obligatorio en %s", v.Env))
	}
	if v.TickSeconds <= 0 {
		errs = append(errs, errors.New("VERIFACTU_TICK_SECONDS debe ser positivo"))
	}
	if v.MaxBatch <= 0 || v.MaxBatch > 1000 {
		errs = append(errs, errors.New("VERIFACTU_MAX_BATCH debe estar entre 1 y 1000"))
	}
	if v.DefaultWaitSeconds < 0 {
		errs = append(errs, errors.New("VERIFACTU_DEFAULT_WAIT_SECONDS no puede ser negativo"))
	}
	if c.JWT.Secret == "" && c.App.Env == "production" {
		errs = append(errs, errors.New("JWT_SECRET es obligatorio en production"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "verifactu-relay"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Enabled:     getBool(v, "DB_ENABLED", false),
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "verifactu"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "verifactu-relay"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Verifactu: VerifactuConfig{
			LedgerRoot:         getString(v, "VERIFACTU_LEDGER_ROOT", ""),
			HashAlgorithm:      getString(v, "VERIFACTU_HASH_ALGORITHM", "SHA-256"),
			HashEncoding:       getString(v, "VERIFACTU_HASH_ENCODING", "UTF-8"),
			Timezone:           getString(v, "VERIFACTU_TIMEZONE", "Europe/Madrid"),
			Env:                getString(v, "VERIFACTU_ENV", "dev"),
			CertPath:           getString(v, "VERIFACTU_CERT_PATH", ""),
			CertKeyPath:        getString(v, "VERIFACTU_CERT_KEY_PATH", ""),
			CertPassword:       getString(v, "VERIFACTU_CERT_PASSWORD", ""),
			TickSeconds:        getInt(v, "VERIFACTU_TICK_SECONDS", 5),
			DefaultWaitSeconds: getInt(v, "VERIFACTU_DEFAULT_WAIT_SECONDS", 60),
			MaxBatch:           getInt(v, "VERIFACTU_MAX_BATCH", 1000),
			AuditEnabled:       getBool(v, "VERIFACTU_AUDIT_ENABLED", true),
			System: SystemConfig{
				NIF:                getString(v, "VERIFACTU_SYSTEM_NIF", ""),
				Name:               getString(v, "VERIFACTU_SYSTEM_PRODUCER", ""),
				SystemName:         getString(v, "VERIFACTU_SYSTEM_NAME", "verifactu-relay"),
				SystemID:           getString(v, "VERIFACTU_SYSTEM_ID", "VR"),
				Version:            getString(v, "VERIFACTU_SYSTEM_VERSION", "1.0.0"),
				InstallationNumber: getString(v, "VERIFACTU_INSTALLATION_NUMBER", "1"),
			},
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return def
		}
		return b
	}
	return def
}
