package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	MetricsPath  string `yaml:"metrics_path"`
}

type HTTPConfig struct {
	Bind         string `yaml:"bind"`
	Port         int    `yaml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	LLM         LLMConfig        `yaml:"llm"`
	TTS         TTSConfig        `yaml:"tts"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
}

// LLMConfig selects and configures the script generation backend.
type LLMConfig struct {
	Mode         string  `yaml:"mode"` // openai, ollama, exec, mock
	Endpoint     string  `yaml:"endpoint"`
	APIKey       string  `yaml:"api_key"`
	Command      string  `yaml:"command"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutMS    int     `yaml:"timeout_ms"`
}

// TTSConfig selects and configures the speech synthesis backend. An empty
// VoiceID disables synthesis entirely.
type TTSConfig struct {
	Mode            string  `yaml:"mode"` // elevenlabs, exec, mock
	Endpoint        string  `yaml:"endpoint"`
	APIKey          string  `yaml:"api_key"`
	Command         string  `yaml:"command"`
	VoiceID         string  `yaml:"voice_id"`
	ModelID         string  `yaml:"model_id"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	TimeoutMS       int     `yaml:"timeout_ms"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	QueueGroup     string   `yaml:"queue_group"`
}

type EventStoreConfig struct {
	Path           string `yaml:"path"`
	RetentionMode  string `yaml:"retention_mode"`
	RetentionDays  int    `yaml:"retention_days"`
	MaxGenerations int    `yaml:"max_generations"`
	VacuumOnStart  bool   `yaml:"vacuum_on_start"`
}

const DefaultSystemPrompt = "You are a senior audio producer. Produce clean podcast scripts with timecodes."

func Default() Config {
	return Config{
		ServiceName: "loqa-podcast",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:         "0.0.0.0",
			Port:         3000,
			MaxBodyBytes: 1 << 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
			MetricsPath:  "/metrics",
		},
		LLM: LLMConfig{
			Mode:         "openai",
			Endpoint:     "https://api.openai.com/v1",
			Model:        "gpt-4.1",
			SystemPrompt: DefaultSystemPrompt,
			TimeoutMS:    120000,
		},
		TTS: TTSConfig{
			Mode:            "elevenlabs",
			Endpoint:        "https://api.elevenlabs.io",
			ModelID:         "eleven_multilingual_v2",
			Stability:       0.5,
			SimilarityBoost: 0.8,
			SampleRate:      22050,
			Channels:        1,
			TimeoutMS:       120000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
			QueueGroup:     "podcast-workers",
		},
		EventStore: EventStoreConfig{
			Path:           "./data/podcast-events.db",
			RetentionMode:  "session",
			RetentionDays:  30,
			MaxGenerations: 10000,
		},
	}
}

// LoadDotEnv populates the process environment from .env files. Missing files
// are reported as false, not as errors.
func LoadDotEnv(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return false, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return false, fmt.Errorf("load env file: %w", err)
	}
	return true, nil
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SynthesisEnabled reports whether a voice identity is configured.
func (c TTSConfig) SynthesisEnabled() bool {
	return strings.TrimSpace(c.VoiceID) != ""
}

func applyEnvOverrides(cfg *Config) {
	// Vendor-conventional names first so the PODCAST_* keys win.
	overrideString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.TTS.APIKey, "ELEVEN_API_KEY")
	overrideString(&cfg.TTS.VoiceID, "ELEVEN_VOICE_ID")

	overrideString(&cfg.ServiceName, "PODCAST_SERVICE_NAME")
	overrideString(&cfg.Environment, "PODCAST_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PODCAST_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PODCAST_HTTP_PORT")
	overrideInt64(&cfg.HTTP.MaxBodyBytes, "PODCAST_HTTP_MAX_BODY_BYTES")
	overrideString(&cfg.Telemetry.LogLevel, "PODCAST_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PODCAST_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PODCAST_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.MetricsPath, "PODCAST_TELEMETRY_METRICS_PATH")
	overrideString(&cfg.LLM.Mode, "PODCAST_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "PODCAST_LLM_ENDPOINT")
	overrideString(&cfg.LLM.APIKey, "PODCAST_LLM_API_KEY")
	overrideString(&cfg.LLM.Command, "PODCAST_LLM_COMMAND")
	overrideString(&cfg.LLM.Model, "PODCAST_LLM_MODEL")
	overrideString(&cfg.LLM.SystemPrompt, "PODCAST_LLM_SYSTEM_PROMPT")
	overrideInt(&cfg.LLM.MaxTokens, "PODCAST_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "PODCAST_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.TimeoutMS, "PODCAST_LLM_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "PODCAST_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "PODCAST_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "PODCAST_TTS_API_KEY")
	overrideString(&cfg.TTS.Command, "PODCAST_TTS_COMMAND")
	overrideString(&cfg.TTS.VoiceID, "PODCAST_TTS_VOICE_ID")
	overrideString(&cfg.TTS.ModelID, "PODCAST_TTS_MODEL_ID")
	overrideFloat(&cfg.TTS.Stability, "PODCAST_TTS_STABILITY")
	overrideFloat(&cfg.TTS.SimilarityBoost, "PODCAST_TTS_SIMILARITY_BOOST")
	overrideInt(&cfg.TTS.SampleRate, "PODCAST_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "PODCAST_TTS_CHANNELS")
	overrideInt(&cfg.TTS.TimeoutMS, "PODCAST_TTS_TIMEOUT_MS")
	overrideBool(&cfg.Bus.Enabled, "PODCAST_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "PODCAST_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PODCAST_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "PODCAST_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "PODCAST_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PODCAST_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PODCAST_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PODCAST_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PODCAST_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PODCAST_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Bus.QueueGroup, "PODCAST_BUS_QUEUE_GROUP")
	overrideString(&cfg.EventStore.Path, "PODCAST_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "PODCAST_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "PODCAST_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxGenerations, "PODCAST_EVENT_STORE_MAX_GENERATIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "PODCAST_EVENT_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be positive")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.Telemetry.MetricsPath != "" && !strings.HasPrefix(cfg.Telemetry.MetricsPath, "/") {
		return errors.New("telemetry.metrics_path must start with /")
	}

	switch cfg.LLM.Mode {
	case "openai":
		if cfg.LLM.APIKey == "" {
			return errors.New("llm.api_key (or OPENAI_API_KEY) must be set when mode=openai")
		}
	case "ollama":
		if cfg.LLM.Endpoint == "" {
			return errors.New("llm.endpoint must be set when mode=ollama")
		}
	case "exec":
		if cfg.LLM.Command == "" {
			return errors.New("llm.command must be set when mode=exec")
		}
	case "mock":
	default:
		return errors.New("llm.mode must be one of openai|ollama|exec|mock")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.LLM.TimeoutMS < 0 {
		return errors.New("llm.timeout_ms must be >= 0")
	}

	switch cfg.TTS.Mode {
	case "elevenlabs":
		if cfg.TTS.SynthesisEnabled() && cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must be set when mode=elevenlabs")
		}
	case "exec":
		if cfg.TTS.SynthesisEnabled() && cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
	case "mock":
	default:
		return errors.New("tts.mode must be one of elevenlabs|exec|mock")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.Channels <= 0 {
		return errors.New("tts.channels must be positive")
	}
	if cfg.TTS.Stability < 0 || cfg.TTS.Stability > 1 {
		return errors.New("tts.stability must be between 0 and 1")
	}
	if cfg.TTS.SimilarityBoost < 0 || cfg.TTS.SimilarityBoost > 1 {
		return errors.New("tts.similarity_boost must be between 0 and 1")
	}
	if cfg.TTS.TimeoutMS < 0 {
		return errors.New("tts.timeout_ms must be >= 0")
	}

	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}

	switch cfg.EventStore.RetentionMode {
	case "ephemeral":
	case "session", "persistent":
		if cfg.EventStore.Path == "" {
			return errors.New("event_store.path must not be empty")
		}
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	return nil
}
