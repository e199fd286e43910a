package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"-"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty" mapstructure:"timeout"`
	Organization   *string        `yaml:"organization,omitempty" mapstructure:"organization"`
	UserAgent      *string        `yaml:"user_agent,omitempty" mapstructure:"user_agent"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML reads timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	aux := &struct {
		Timeout *int `yaml:"timeout,omitempty"`
		*Alias `yaml:",inline"`
	}{
		Alias: (*Alias)(cs),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
		cs.TimeoutSeconds = aux.Timeout
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
	}
}

// WithTimeout sets both timeout representations.
func (cs *ClientSettings) WithTimeout(d time.Duration) *ClientSettings {
	cs.Timeout = &d
	secs := int(d.Seconds())
	cs.TimeoutSeconds = &secs
	return cs
}
