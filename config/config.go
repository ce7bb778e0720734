// clipforge/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	// Media toolchain
	FFBin           string        `mapstructure:"FF_BIN"`
	FFProbeBin      string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout       time.Duration `mapstructure:"FF_TIMEOUT"`
	ExtraEncodeArgs string        `mapstructure:"EXTRA_ENCODE_ARGS"`

	// Directories
	TaskDir string `mapstructure:"TASK_DIR"`
	FontDir string `mapstructure:"FONT_DIR"`
	SongDir string `mapstructure:"SONG_DIR"`

	// Task state store
	StateBackend  string `mapstructure:"STATE_BACKEND"` // "memory" or "redis"
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Generators
	LLMBaseURL       string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey        string `mapstructure:"LLM_API_KEY"`
	LLMModel         string `mapstructure:"LLM_MODEL"`
	PexelsAPIKey     string `mapstructure:"PEXELS_API_KEY"`
	EdgeTTSBin       string `mapstructure:"EDGE_TTS_BIN"`
	WhisperBin       string `mapstructure:"WHISPER_BIN"`
	WhisperModel     string `mapstructure:"WHISPER_MODEL"`
	SubtitleProvider string `mapstructure:"SUBTITLE_PROVIDER"`

	// Encoding throttle
	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	// HTTP surface
	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "15m")
	vp.SetDefault("EXTRA_ENCODE_ARGS", "")
	vp.SetDefault("TASK_DIR", "./storage/tasks")
	vp.SetDefault("FONT_DIR", "./resource/fonts")
	vp.SetDefault("SONG_DIR", "./resource/songs")
	vp.SetDefault("STATE_BACKEND", "memory")
	vp.SetDefault("REDIS_ADDR", "localhost:6379")
	vp.SetDefault("REDIS_PASSWORD", "")
	vp.SetDefault("REDIS_DB", 0)
	vp.SetDefault("LLM_BASE_URL", "https://api.openai.com/v1")
	vp.SetDefault("LLM_API_KEY", "")
	vp.SetDefault("LLM_MODEL", "gpt-4o-mini")
	vp.SetDefault("PEXELS_API_KEY", "")
	vp.SetDefault("EDGE_TTS_BIN", "edge-tts")
	vp.SetDefault("WHISPER_BIN", "whisper")
	vp.SetDefault("WHISPER_MODEL", "base")
	vp.SetDefault("SUBTITLE_PROVIDER", "edge")
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "500MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")

	// Load from config file
	vp.SetConfigName("clipforge_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/clipforge/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("CLIPFORGE")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
