package settings

import (
	"github.com/go-go-golems/coder/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
)

type ChatSettings struct {
	Engine            *string        `yaml:"engine,omitempty" mapstructure:"engine"`
	ApiType           *types.ApiType `yaml:"api_type,omitempty" mapstructure:"api_type"`
	MaxResponseTokens *int           `yaml:"max_response_tokens,omitempty" mapstructure:"max_response_tokens"`
	TopP              *float64       `yaml:"top_p,omitempty" mapstructure:"top_p"`
	Temperature       *float64       `yaml:"temperature,omitempty" mapstructure:"temperature"`
	Stop              []string       `yaml:"stop,omitempty" mapstructure:"stop"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Stop: []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
