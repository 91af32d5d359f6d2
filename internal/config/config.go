package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8000"`
	APIPrefix     string `env:"API_PREFIX" envDefault:"/api/v1"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://127.0.0.1:8000"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"user-api"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES" envDefault:"0"`

	Argon2MemoryKB    uint32 `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Time        uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LoginMaxAttempts     int `env:"LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	VerifyMaxAttempts    int `env:"VERIFY_MAX_ATTEMPTS" envDefault:"5"`
	AttemptWindowMinutes int `env:"ATTEMPT_WINDOW_MINUTES" envDefault:"10"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageDir     string `env:"STORAGE_DIR" envDefault:"storage"`
	Minio          MinioConfig
}

// MinioConfig agrupa la configuración del backend de avatares en MinIO.
type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"avatars"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	PublicURL string `env:"MINIO_PUBLIC_URL"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "/" {
		cfg.APIPrefix = ""
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &cfg, nil
}

// DefaultAvatarURL devuelve el avatar asignado a cuentas nuevas.
func (c *Config) DefaultAvatarURL() string {
	return c.PublicBaseURL + "/storage/default.png"
}

// VerificationURL construye el enlace que se envía en el correo de verificación.
func (c *Config) VerificationURL(otp string) string {
	return c.PublicBaseURL + c.APIPrefix + "/auth/verify/" + otp
}
