package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string          `yaml:"env" env-default:"local"`
	StoragePath string          `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	Telegram    TelegramConfig  `yaml:"telegram"`
	Redis       RedisConfig     `yaml:"redis"`
	HTTP        HTTPConfig      `yaml:"http"`
	Admin       AdminConfig     `yaml:"admin"`
	Gate        GateConfig      `yaml:"gate"`
	Captcha     CaptchaConfig   `yaml:"captcha"`
	Admission   AdmissionConfig `yaml:"admission"`
	Broadcast   BroadcastConfig `yaml:"broadcast"`
	// Base64-encoded 32-byte key for phone encryption at rest.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY" env-required:"true"`
}

type TelegramConfig struct {
	Token string `yaml:"token" env:"BOT_TOKEN" env-required:"true"`
}

// RedisConfig with an empty address switches the kv layer to the in-process
// store (single-instance deployments and local runs).
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env-default:"8080"`
}

type AdminConfig struct {
	// bcrypt hash of the admin panel password.
	PasswordHash string        `yaml:"password_hash" env:"ADMIN_PASSWORD_HASH" env-required:"true"`
	JWTSecret    string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"1h"`
}

type GateConfig struct {
	// Channel refs: "@handle" or a "-100..." numeric id.
	RequiredChannels []string `yaml:"required_channels" env:"REQUIRED_CHANNELS" env-separator:","`
}

type CaptchaConfig struct {
	Timeout       time.Duration `yaml:"timeout" env-default:"60s"`
	MaxAttempts   int           `yaml:"max_attempts" env-default:"3"`
	BlockDuration time.Duration `yaml:"block_duration" env-default:"5m"`
}

type AdmissionConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"30m"`
}

type BroadcastConfig struct {
	SendPause time.Duration `yaml:"send_pause" env-default:"100ms"`
}

func Load(path string) *Config {
	var config Config
	err := cleanenv.ReadConfig(path, &config)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &config
}
