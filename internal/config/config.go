// Package config loads the engine configuration surface. Every threshold the
// scorer and workflows consult lives here so hosts can retune the corridor
// without a rebuild.
package config

import (
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/internal/risk"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

// Config is the full engine configuration.
type Config struct {
	LogLevel string      `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Risk     risk.Config `mapstructure:"risk" validate:"required"`

	// corridor pair shown on the dashboard forex line
	ForexBase  currency.Code `mapstructure:"forex_base" validate:"required"`
	ForexQuote currency.Code `mapstructure:"forex_quote" validate:"required"`
}

// Default returns the corridor defaults (MWK reporting, CNY/MWK forex line).
func Default() Config {
	return Config{
		LogLevel:   "info",
		Risk:       risk.DefaultConfig(),
		ForexBase:  currency.CNY,
		ForexQuote: currency.MWK,
	}
}

// Load reads configuration from path (YAML), falling back to defaults when
// the file is absent. Defaults fill any key the file omits; the merged result
// is validated before it is returned.
func Load(path string, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := Default()

	v := viper.New()
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Warn("configuration file not found, using defaults", zap.String("path", path))
			return validated(&cfg)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("engine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/corridor_compliance")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("configuration file not found, using defaults")
			return validated(&cfg)
		}
		return nil, errors.Wrap(errors.KindValidation, err, "failed to read configuration file")
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, errors.Wrap(errors.KindValidation, err, "failed to decode configuration")
	}

	logger.Info("engine configuration loaded", zap.String("file", v.ConfigFileUsed()))
	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.KindValidation, err, "invalid engine configuration")
	}

	// viper lowercases map keys, so re-parse every currency code it produced
	var err error
	if cfg.Risk.HighAmountThresholds, err = normalizeThresholds(cfg.Risk.HighAmountThresholds); err != nil {
		return nil, err
	}
	if cfg.Risk.MediumAmountThresholds, err = normalizeThresholds(cfg.Risk.MediumAmountThresholds); err != nil {
		return nil, err
	}
	if cfg.Risk.ReportingCurrency, err = currency.Parse(string(cfg.Risk.ReportingCurrency)); err != nil {
		return nil, err
	}
	if cfg.ForexBase, err = currency.Parse(string(cfg.ForexBase)); err != nil {
		return nil, err
	}
	if cfg.ForexQuote, err = currency.Parse(string(cfg.ForexQuote)); err != nil {
		return nil, err
	}

	if cfg.Risk.HighScoreFloor <= cfg.Risk.MediumScoreFloor || cfg.Risk.CriticalScoreFloor <= cfg.Risk.HighScoreFloor {
		return nil, errors.Validation("score floors must be strictly increasing: medium < high < critical")
	}
	return cfg, nil
}

func normalizeThresholds(in map[currency.Code]decimal.Decimal) (map[currency.Code]decimal.Decimal, error) {
	out := make(map[currency.Code]decimal.Decimal, len(in))
	for code, cutoff := range in {
		parsed, err := currency.Parse(string(code))
		if err != nil {
			return nil, err
		}
		if !cutoff.IsPositive() {
			return nil, errors.Validation("amount threshold for %s must be positive, got %s", parsed, cutoff)
		}
		out[parsed] = cutoff
	}
	return out, nil
}

// decodeHooks teaches mapstructure to decode decimal amounts from the YAML
// scalar forms viper produces.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToDecimalHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func stringToDecimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return data, nil
	}
}
