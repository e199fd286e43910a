package factory

import (
	"strings"

	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/middleware"
	"github.com/go-go-golems/coder/pkg/steps/ai/openai"
	"github.com/go-go-golems/coder/pkg/steps/ai/settings"
	"github.com/go-go-golems/coder/pkg/steps/ai/types"
	"github.com/pkg/errors"
)

// EngineFactory creates inference engines from provider settings, so callers
// never depend on a concrete provider implementation.
type EngineFactory interface {
	// CreateEngine picks the provider from settings.Chat.ApiType.
	CreateEngine(settings *settings.StepSettings) (engine.Engine, error)
	SupportedProviders() []string
	// DefaultProvider is used when settings.Chat.ApiType is nil.
	DefaultProvider() string
}

// StandardEngineFactory builds OpenAI-compatible engines and wraps each of
// them with Middlewares.
type StandardEngineFactory struct {
	Middlewares []middleware.Middleware
}

var _ EngineFactory = (*StandardEngineFactory)(nil)

func NewStandardEngineFactory(middlewares ...middleware.Middleware) *StandardEngineFactory {
	return &StandardEngineFactory{Middlewares: middlewares}
}

func (f *StandardEngineFactory) CreateEngine(settings *settings.StepSettings) (engine.Engine, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := f.DefaultProvider()
	if settings.Chat != nil && settings.Chat.ApiType != nil {
		provider = strings.ToLower(string(*settings.Chat.ApiType))
	}

	if err := f.validateSettings(settings, provider); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	var ret engine.Engine
	switch provider {
	case string(types.ApiTypeOpenAI), string(types.ApiTypeMistral):
		apiType := types.ApiType(provider)
		settings.Chat.ApiType = &apiType
		e, err := openai.NewOpenAIEngine(settings)
		if err != nil {
			return nil, err
		}
		ret = e
	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}

	if len(f.Middlewares) == 0 {
		return ret, nil
	}
	return middleware.NewEngineWithMiddleware(ret, f.Middlewares...), nil
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(types.ApiTypeOpenAI),
		string(types.ApiTypeMistral),
	}
}

func (f *StandardEngineFactory) DefaultProvider() string {
	return string(types.ApiTypeOpenAI)
}

func (f *StandardEngineFactory) validateSettings(settings *settings.StepSettings, provider string) error {
	if settings.Chat == nil {
		return errors.New("chat settings cannot be nil")
	}
	if settings.API == nil {
		return errors.New("API settings cannot be nil")
	}
	if settings.Chat.Engine == nil || *settings.Chat.Engine == "" {
		return errors.New("no chat engine specified")
	}

	apiKeyName := provider + "-api-key"
	if key, ok := settings.API.APIKeys[apiKeyName]; !ok || key == "" {
		return errors.Errorf("missing API key %s", apiKeyName)
	}
	baseURLName := provider + "-base-url"
	if u, ok := settings.API.BaseUrls[baseURLName]; !ok || u == "" {
		return errors.Errorf("missing base URL %s for provider %s", baseURLName, provider)
	}
	return nil
}
