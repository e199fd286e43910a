package settings

import (
	"io"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type factoryConfigFileWrapper struct {
	Factories *StepSettings
}

// StepSettings is everything one engine needs to reach its provider.
type StepSettings struct {
	API    *APISettings    `yaml:"api,omitempty" mapstructure:"api"`
	Chat   *ChatSettings   `yaml:"chat,omitempty" mapstructure:"chat"`
	Client *ClientSettings `yaml:"client,omitempty" mapstructure:"client"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		API:    NewAPISettings(),
		Chat:   NewChatSettings(),
		Client: NewClientSettings(),
	}
}

func NewStepSettingsFromYAML(s io.Reader) (*StepSettings, error) {
	settings_ := factoryConfigFileWrapper{
		Factories: NewStepSettings(),
	}
	if err := yaml.NewDecoder(s).Decode(&settings_); err != nil {
		return nil, err
	}

	return settings_.Factories, nil
}

func (ss *StepSettings) Clone() *StepSettings {
	return clone.Clone(ss).(*StepSettings)
}

// GetMetadata returns the non-secret settings, for logging.
func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		if ss.Chat.Engine != nil {
			metadata["ai-engine"] = *ss.Chat.Engine
		}
		if ss.Chat.ApiType != nil {
			metadata["ai-api-type"] = string(*ss.Chat.ApiType)
		}
		if ss.Chat.MaxResponseTokens != nil {
			metadata["ai-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["ai-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["ai-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["ai-stop"] = ss.Chat.Stop
		}
	}

	if ss.API != nil && ss.Chat != nil && ss.Chat.ApiType != nil {
		if u, ok := ss.API.BaseUrls[string(*ss.Chat.ApiType)+"-base-url"]; ok {
			metadata["base-url"] = u
		}
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.Organization != nil && *ss.Client.Organization != "" {
			metadata["organization"] = *ss.Client.Organization
		}
		if ss.Client.UserAgent != nil {
			metadata["user-agent"] = *ss.Client.UserAgent
		}
	}

	return metadata
}
