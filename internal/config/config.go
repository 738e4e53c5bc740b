package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// CarrierConfig contains settings for sizing and generating carriers.
type CarrierConfig struct {
	WidthFactor      int
	HeightFactor     int
	Interval         int
	MinMultiplier    int
	CellSize         int
	MaxPayloadLength int64
	MaxImageBytes    int64
}

// CryptoConfig contains settings for sealing payloads.
type CryptoConfig struct {
	PBKDF2Iters       int
	MinPasswordLength int
	Compress          bool
}

// Config contains all settings for the encoder and decoder.
type Config struct {
	LogLevel uint32
	Carrier  CarrierConfig
	Crypto   CryptoConfig
}

// NewDefaultConfig creates a new Config with default settings.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: uint32(log.InfoLevel),
		Carrier: CarrierConfig{
			WidthFactor:      spec.WIDTH_FACTOR,
			HeightFactor:     spec.HEIGHT_FACTOR,
			Interval:         spec.SIZE_INTERVAL,
			MinMultiplier:    spec.MIN_SIZE_MULTIPLIER,
			CellSize:         spec.DEFAULT_CELL_SIZE,
			MaxPayloadLength: spec.DEFAULT_MAX_PAYLOAD_LENGTH,
			MaxImageBytes:    spec.DEFAULT_MAX_IMAGE_BYTES,
		},
		Crypto: CryptoConfig{
			PBKDF2Iters:       spec.PBKDF2_ITERS,
			MinPasswordLength: spec.MIN_PASSWORD,
			Compress:          true,
		},
	}
}

// Sizer returns the carrier sizer described by the config.
func (c *Config) Sizer() carrier.Sizer {
	s := carrier.DefaultSizer()
	s.WidthFactor = c.Carrier.WidthFactor
	s.HeightFactor = c.Carrier.HeightFactor
	s.Interval = c.Carrier.Interval
	s.MinMultiplier = c.Carrier.MinMultiplier
	s.MaxPayloadLength = c.Carrier.MaxPayloadLength
	s.MaxImageBytes = c.Carrier.MaxImageBytes
	return s
}

// GetLogLevel converts the level string to its corresponding int value. It
// returns an error if the level is invalid.
func GetLogLevel(level string) (uint32, error) {
	var l uint32
	switch strings.ToLower(level) {
	case "debug":
		l = uint32(log.DebugLevel)
	case "info":
		l = uint32(log.InfoLevel)
	case "warn":
		l = uint32(log.WarnLevel)
	case "error":
		l = uint32(log.ErrorLevel)
	default:
		return 0, fmt.Errorf("Invalid log.level setting %q", level)
	}
	return l, nil
}

// NewConfig creates a new Config with default settings and applies any
// settings from the given configuration file. An empty or missing file
// yields the defaults.
func NewConfig(configFile string) (*Config, error) {
	config := NewDefaultConfig()
	if configFile == "" {
		return config, nil
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return config, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", configFile)
	}

	if v.IsSet("log.level") {
		level, err := GetLogLevel(v.GetString("log.level"))
		if err != nil {
			return nil, err
		}
		config.LogLevel = level
	}

	if err := parseCarrierConfig(config, v); err != nil {
		return nil, err
	}
	if err := parseCryptoConfig(config, v); err != nil {
		return nil, err
	}
	return config, nil
}

// parseCarrierConfig parses the `carrier` section of a config file.
func parseCarrierConfig(config *Config, v *viper.Viper) error {
	ints := map[string]*int{
		"carrier.width.factor":   &config.Carrier.WidthFactor,
		"carrier.height.factor":  &config.Carrier.HeightFactor,
		"carrier.interval":       &config.Carrier.Interval,
		"carrier.min.multiplier": &config.Carrier.MinMultiplier,
		"carrier.cell.size":      &config.Carrier.CellSize,
	}
	for key, dst := range ints {
		if !v.IsSet(key) {
			continue
		}
		*dst = v.GetInt(key)
		if *dst <= 0 {
			return errors.Errorf("%s must be positive, got %d", key, *dst)
		}
	}

	sizes := map[string]*int64{
		"carrier.max.payload": &config.Carrier.MaxPayloadLength,
		"carrier.max.image":   &config.Carrier.MaxImageBytes,
	}
	for key, dst := range sizes {
		if !v.IsSet(key) {
			continue
		}
		n, err := humanize.ParseBytes(v.GetString(key))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		if n == 0 || n > math.MaxInt64 {
			return errors.Errorf("%s must be between 1 byte and %s, got %s",
				key, humanize.Bytes(math.MaxInt64), v.GetString(key))
		}
		*dst = int64(n)
	}
	return nil
}

// parseCryptoConfig parses the `crypto` section of a config file.
func parseCryptoConfig(config *Config, v *viper.Viper) error {
	if v.IsSet("crypto.pbkdf2.iterations") {
		config.Crypto.PBKDF2Iters = v.GetInt("crypto.pbkdf2.iterations")
		if config.Crypto.PBKDF2Iters <= 0 {
			return errors.New("crypto.pbkdf2.iterations must be positive")
		}
	}
	if v.IsSet("crypto.password.min") {
		config.Crypto.MinPasswordLength = v.GetInt("crypto.password.min")
	}
	if v.IsSet("crypto.compress") {
		config.Crypto.Compress = v.GetBool("crypto.compress")
	}
	return nil
}
