package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"go-simpler.org/env"
)

// TesConfig represents the configuration of this service
type TesConfig struct {
	// Name of the object store in NATS caching OCR results
	// Default: TES_OCR_RESULTS
	Bucket string `env:"TES_BUCKET" default:"TES_OCR_RESULTS"`
	// wether to expose embedded NATS server to other clients. Default: false
	ExposeNats bool `env:"TES_EXPOSE_NATS" default:"false"`
	// Add source info to log statement. Default: false
	Debug bool `env:"TES_DEBUG" default:"false"`
	// If true the service will exit with an error if NATS or JetStream can't be connected
	FailWithoutJetstream bool `env:"TES_FAIL_WITHOUT_JS" default:"false"`
	// Log level (DEBUG, INFO, WARN, ERROR)
	LogLevelStr string `env:"TES_LOG_LEVEL" default:"INFO"`
	LogLevel    slog.Level
	// Maximum size of a decoded image (bytes per line * height); bigger images are rejected
	MaxImageSize      string `env:"TES_MAX_IMAGE_SIZE" default:"64MiB"`
	MaxImageSizeBytes uint64
	// NATS max msg size (embedded server only)
	NatsMaxPayload int32 `env:"TES_MAX_PAYLOAD" default:"8388608"`
	// embedded NATS server storage location. Default: /tmp/nats
	NatsStoreDir string `env:"TES_NATS_STORE_DIR"`
	// embedded NATS server host/ip address, if exposed. Default: localhost
	NatsHost string `env:"TES_NATS_HOST" default:"localhost"`
	// embedded NATS server port, if exposed. Default: 4222
	NatsPort int `env:"TES_NATS_PORT" default:"4222" validate:"gte=0,lte=65535"`
	// External NATS URL, e.g. nats://localhost:4222
	NatsUrl string `env:"TES_NATS_URL"`
	// Timeout for the external NATS connection
	NatsTimeout time.Duration `env:"TES_NATS_TIMEOUT" default:"15s"`
	// NatsConnectRetries is the number of attempts to connect to external NATS server(s)
	NatsConnectRetries int `env:"TES_NATS_CONNECT_RETRIES" default:"10" validate:"gte=0"`
	// if true, disable HTTP Server in favor of NATS Microservice interface
	NoHttp bool `env:"TES_NO_HTTP" default:"false"`
	// Maximum time a client waits for a recognition. Tesseract itself is not interrupted.
	OcrTimeout time.Duration `env:"TES_OCR_TIMEOUT" default:"60s"`
	// Default page segmentation mode (0-13), see tesseract --help-psm. Default: 3 (fully automatic)
	PageSegMode int `env:"TES_PAGE_SEG_MODE" default:"3" validate:"gte=0,lte=13"`
	// Number of independent Tesseract instances, i.e. recognitions running in parallel
	PoolSize int `env:"TES_POOL_SIZE" default:"2" validate:"gte=1,lte=256"`
	// How many replicas of the bucket to create. Default: 1
	Replicas int `env:"TES_REPLICAS" default:"1" validate:"gte=1,lte=5"`
	// HTTP listen address and/or port. Default: ':8080'
	SrvAddr string `env:"TES_HOST_PORT" default:":8080"`
	// Directory holding the *.traineddata files. Empty means $TESSDATA_PREFIX or the per-user default
	TessdataPath string `env:"TES_TESSDATA_PATH"`
	// Path of libtesseract; can be empty (to use defaults) or just the basename (e.g. "libtesseract.so.5")
	TesseractLibPath string `env:"TES_TESSERACT_LIB_PATH"`
	// List of 3-letter language codes, separated by `+` to be passed to Tesseract
	// when doing OCR. Default: eng. NOTE: The languages need to be installed.
	TesseractLangs string `env:"TES_TESSERACT_LANGS" default:"eng" validate:"required"`
	// Tesseract variables as comma separated name=value pairs,
	// e.g. "tessedit_char_whitelist=0123456789,user_defined_dpi=300"
	TesseractVariablesStr string `env:"TES_TESSERACT_VARIABLES"`
	TesseractVariables    map[string]string
}

// NewTesConfigFromEnv returns a service config object
// populated with defaults and values from environment vars
func NewTesConfigFromEnv() (*TesConfig, error) {
	var cfg TesConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, err
	}
	err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelStr))
	if err != nil {
		return nil, fmt.Errorf("parsing log level from env: %w", err)
	}
	maxSize, err := humanize.ParseBytes(cfg.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max image size from env: %w", err)
	}
	cfg.MaxImageSizeBytes = maxSize
	cfg.TesseractVariables, err = ParseVariables(cfg.TesseractVariablesStr)
	if err != nil {
		return nil, fmt.Errorf("parsing tesseract variables from env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ParseVariables splits "name=value,name=value". Values may not contain commas.
func ParseVariables(s string) (map[string]string, error) {
	vars := make(map[string]string)
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not a name=value pair", pair)
		}
		vars[name] = value
	}
	return vars, nil
}
