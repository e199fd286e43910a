package main

import (
	"os"
	"time"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/steps/ai/settings"
	"github.com/go-go-golems/coder/pkg/steps/ai/types"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// fallbackEnv lists the variable names the service was historically deployed with.
var fallbackEnv = map[string][]string{
	"openai-api-key":  {"CODER_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"mistral-api-key": {"CODER_MISTRAL_API_KEY", "MISTRAL_API_KEY"},
	"db-dsn":          {"CODER_DB_DSN", "DATABASE_URL"},
}

func bindFallbackEnv() error {
	for key, names := range fallbackEnv {
		args := append([]string{key}, names...)
		if err := viper.BindEnv(args...); err != nil {
			return errors.Wrapf(err, "bind env for %s", key)
		}
	}
	return nil
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("db-driver", store.DriverPostgres, "Database driver (postgres, sqlite3)")
	fs.String("db-dsn", "", "Database connection string (DATABASE_URL)")
	fs.Int("db-max-open-conns", 10, "Maximum number of open database connections")
	fs.Duration("db-conn-max-lifetime", 30*time.Minute, "Maximum lifetime of a database connection")
}

func addAIFlags(fs *pflag.FlagSet) {
	fs.String("ai-config", "", "YAML file with base step settings (factories: {api, chat, client})")
	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("openai-base-url", "", "OpenAI API base URL")
	fs.String("mistral-api-key", "", "Mistral API key")
	fs.String("mistral-base-url", "", "Mistral API base URL")
	fs.String("ask-engine", "mistral-large-latest", "Model used by the ask persona")
	fs.String("ask-api-type", string(types.ApiTypeMistral), "Provider of the ask persona (openai, mistral)")
	fs.String("edit-engine", "o3-mini-2025-01-31", "Model used by the edit persona")
	fs.String("edit-api-type", string(types.ApiTypeOpenAI), "Provider of the edit persona (openai, mistral)")
	fs.Float64("ai-temperature", -1, "Sampling temperature (negative keeps the provider default)")
	fs.Int("ai-max-response-tokens", 0, "Maximum response tokens (0 keeps the provider default)")
	fs.Duration("ai-timeout", 120*time.Second, "Timeout of one model call")
}

func storeSettingsFromViper() (store.Settings, error) {
	s := store.Settings{
		Driver:          viper.GetString("db-driver"),
		DSN:             viper.GetString("db-dsn"),
		MaxOpenConns:    viper.GetInt("db-max-open-conns"),
		ConnMaxLifetime: viper.GetDuration("db-conn-max-lifetime"),
	}
	if s.DSN == "" {
		return s, errors.New("no database configured: set --db-dsn, CODER_DB_DSN or DATABASE_URL")
	}
	return s, nil
}

// baseStepSettings loads --ai-config if given and applies the key and url flags.
func baseStepSettings() (*settings.StepSettings, error) {
	ss := settings.NewStepSettings()
	if path := viper.GetString("ai-config"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open ai config")
		}
		defer f.Close()
		ss, err = settings.NewStepSettingsFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "parse ai config %s", path)
		}
		if ss.API == nil {
			ss.API = settings.NewAPISettings()
		}
		if ss.Chat == nil {
			ss.Chat = settings.NewChatSettings()
		}
		if ss.Client == nil {
			ss.Client = settings.NewClientSettings()
		}
	}

	for _, apiType := range []types.ApiType{types.ApiTypeOpenAI, types.ApiTypeMistral} {
		if key := viper.GetString(string(apiType) + "-api-key"); key != "" {
			ss.API.SetAPIKey(apiType, key)
		}
		ss.API.SetBaseURL(apiType, viper.GetString(string(apiType)+"-base-url"))
	}

	if t := viper.GetFloat64("ai-temperature"); t >= 0 {
		ss.Chat.Temperature = &t
	}
	if n := viper.GetInt("ai-max-response-tokens"); n > 0 {
		ss.Chat.MaxResponseTokens = &n
	}
	if d := viper.GetDuration("ai-timeout"); d > 0 {
		ss.Client.WithTimeout(d)
	}
	return ss, nil
}

// personaStepSettings derives the settings of one persona from base.
func personaStepSettings(base *settings.StepSettings, persona conversation.Persona) (*settings.StepSettings, error) {
	ss := base.Clone()
	engine := viper.GetString(string(persona) + "-engine")
	apiType, err := types.ParseApiType(viper.GetString(string(persona) + "-api-type"))
	if err != nil {
		return nil, errors.Wrapf(err, "%s persona", persona)
	}
	ss.Chat.Engine = &engine
	ss.Chat.ApiType = &apiType
	return ss, nil
}
