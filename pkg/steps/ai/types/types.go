package types

import "github.com/pkg/errors"

type ApiType string

const (
	ApiTypeOpenAI ApiType = "openai"
	// Mistral serves an OpenAI compatible chat completions endpoint.
	ApiTypeMistral ApiType = "mistral"
)

func ParseApiType(s string) (ApiType, error) {
	switch ApiType(s) {
	case ApiTypeOpenAI, ApiTypeMistral:
		return ApiType(s), nil
	default:
		return "", errors.Errorf("unsupported api type %q", s)
	}
}

// DefaultBaseURL returns the public endpoint of the given api type.
func DefaultBaseURL(apiType ApiType) string {
	switch apiType {
	case ApiTypeMistral:
		return "https://api.mistral.ai/v1"
	default:
		return "https://api.openai.com/v1"
	}
}
