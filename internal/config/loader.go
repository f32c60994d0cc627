package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// ErrLoadConfig marks failures reading a source; ErrInvalidConfig marks a
// config that loaded but failed validation.
var (
	ErrLoadConfig    = errors.New("config: load failed")
	ErrInvalidConfig = errors.New("config: invalid")
)

// Environment variables that locate extra configuration sources.
const (
	EnvPrefix = "CFP_"
	EnvConfig = "CFP_CONFIG"
	EnvDotenv = "CFP_DOTENV"
)

// Load builds a Config by layering sources. Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. .env file named by CFP_DOTENV, loaded into the process environment
//  3. YAML file named by CFP_CONFIG
//  4. env (prefix CFP_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	// Variables already set in the environment win over the .env file.
	if path := os.Getenv(EnvDotenv); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, errors.Wrapf(ErrLoadConfig, "dotenv %s: %v", path, err)
		}
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(ErrLoadConfig, "file %s: %v", path, err)
		}
	}

	// CFP_QUEUE_SIZE -> queue_size. Keys are flat, so underscores stay.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrapf(ErrLoadConfig, "env: %v", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrapf(ErrLoadConfig, "unmarshal: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the JWT secret rule.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("koanf")
	})
	v.RegisterStructValidation(secretRule, Config{})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return errors.Wrap(ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

func secretRule(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if len(c.JWTSecret) < MinSecretLen && !c.InsecureSecretAllowed() {
		sl.ReportError(c.JWTSecret, "jwt_secret", "JWTSecret", "secret_len", "")
	}
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "secret_len" {
		return fmt.Sprintf("jwt_secret must be at least %d characters unless dev_mode is set with the memory store", MinSecretLen)
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag())
}
