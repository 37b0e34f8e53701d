package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string
	HTTPAddress string

	// Access and refresh tokens are signed with distinct secrets so a leak of
	// one cannot be used to forge the other.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ClockSkew          time.Duration

	PasswordPepper string

	CookieDomain     string
	AllowedOrigins   []string
	AllowCredentials bool
	HTTPSCertFile    string
	HTTPSKeyFile     string

	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string
	S3PublicBaseURL string
}

var requiredKeys = []string{
	"DATABASE_URL",
	"ACCESS_TOKEN_SECRET",
	"REFRESH_TOKEN_SECRET",
	"ACCESS_TOKEN_TTL",
	"REFRESH_TOKEN_TTL",
	"PASSWORD_PEPPER",
	"S3_REGION",
	"S3_BUCKET",
	"S3_ACCESS_KEY",
	"S3_SECRET_KEY",
	"S3_PUBLIC_BASE_URL",
}

var optionalKeys = []string{
	"HTTP_ADDRESS",
	"CLOCK_SKEW",
	"COOKIE_DOMAIN",
	"ALLOWED_ORIGINS",
	"ALLOW_CREDENTIALS",
	"HTTPS_CERT_FILE",
	"HTTPS_KEY_FILE",
	"S3_ENDPOINT",
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	for _, key := range append(append([]string{}, requiredKeys...), optionalKeys...) {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for _, key := range requiredKeys {
		if viper.GetString(key) == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}

	viper.SetDefault("HTTP_ADDRESS", ":8080")

	cfg := &Config{
		DatabaseURL:        viper.GetString("DATABASE_URL"),
		HTTPAddress:        viper.GetString("HTTP_ADDRESS"),
		AccessTokenSecret:  viper.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: viper.GetString("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     viper.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:    viper.GetDuration("REFRESH_TOKEN_TTL"),
		ClockSkew:          viper.GetDuration("CLOCK_SKEW"),
		PasswordPepper:     viper.GetString("PASSWORD_PEPPER"),
		CookieDomain:       viper.GetString("COOKIE_DOMAIN"),
		AllowedOrigins:     viper.GetStringSlice("ALLOWED_ORIGINS"),
		AllowCredentials:   viper.GetBool("ALLOW_CREDENTIALS"),
		HTTPSCertFile:      viper.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:       viper.GetString("HTTPS_KEY_FILE"),
		S3Region:           viper.GetString("S3_REGION"),
		S3Bucket:           viper.GetString("S3_BUCKET"),
		S3AccessKey:        viper.GetString("S3_ACCESS_KEY"),
		S3SecretKey:        viper.GetString("S3_SECRET_KEY"),
		S3Endpoint:         viper.GetString("S3_ENDPOINT"),
		S3PublicBaseURL:    viper.GetString("S3_PUBLIC_BASE_URL"),
	}

	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be a positive duration")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("REFRESH_TOKEN_TTL must be a positive duration")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return cfg, nil
}
