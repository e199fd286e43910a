package engine

// UpstreamModelError wraps any failure of the model provider: transport,
// authentication, rate limiting, malformed response or context cancellation.
type UpstreamModelError struct {
	Provider string
	Model    string
	Err      error
}

func (e *UpstreamModelError) Error() string {
	msg := "upstream model error"
	if e.Provider != "" {
		msg += " (" + e.Provider
		if e.Model != "" {
			msg += "/" + e.Model
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamModelError) Unwrap() error {
	return e.Err
}
