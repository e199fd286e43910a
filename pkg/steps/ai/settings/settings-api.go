package settings

import (
	"github.com/go-go-golems/coder/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
)

// APISettings holds credentials and endpoints keyed by "<api-type>-api-key" and
// "<api-type>-base-url".
type APISettings struct {
	APIKeys  map[string]string `yaml:"api_keys,omitempty" mapstructure:"api_keys"`
	BaseUrls map[string]string `yaml:"base_urls,omitempty" mapstructure:"base_urls"`
}

func NewAPISettings() *APISettings {
	return &APISettings{
		APIKeys: map[string]string{},
		BaseUrls: map[string]string{
			string(types.ApiTypeOpenAI) + "-base-url":  types.DefaultBaseURL(types.ApiTypeOpenAI),
			string(types.ApiTypeMistral) + "-base-url": types.DefaultBaseURL(types.ApiTypeMistral),
		},
	}
}

func (s *APISettings) SetAPIKey(apiType types.ApiType, key string) {
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	s.APIKeys[string(apiType)+"-api-key"] = key
}

// SetBaseURL overrides the endpoint of apiType. An empty url keeps the current value.
func (s *APISettings) SetBaseURL(apiType types.ApiType, url string) {
	if url == "" {
		return
	}
	if s.BaseUrls == nil {
		s.BaseUrls = map[string]string{}
	}
	s.BaseUrls[string(apiType)+"-base-url"] = url
}

func (s *APISettings) Clone() *APISettings {
	return clone.Clone(s).(*APISettings)
}
