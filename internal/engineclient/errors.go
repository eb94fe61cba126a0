package engineclient

import (
	"fmt"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindBadStatus   Kind = "bad_status"
	KindDecode      Kind = "decode"
	KindTimeout     Kind = "timeout"
)

// EngineError describes a failed engine call. It is returned as the cause of
// a *errors.Error so callers can switch on either the code or the kind.
type EngineError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Detail     string
	Cause      error
}

func (e *EngineError) Error() string {
	if e.Kind == KindBadStatus {
		return fmt.Sprintf("%s %s (%d): %s", e.Endpoint, e.Kind, e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("%s %s: %s", e.Endpoint, e.Kind, e.Detail)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

func codeFor(kind Kind, schema bool) errors.ErrorCode {
	switch kind {
	case KindUnreachable:
		return errors.ErrCodeUnreachable
	case KindAuth:
		return errors.ErrCodeAuthFailed
	case KindRateLimited:
		return errors.ErrCodeRateLimited
	case KindBadStatus:
		return errors.ErrCodeBadStatus
	case KindTimeout:
		return errors.ErrCodeTimeout
	case KindDecode:
		if schema {
			return errors.ErrCodeSchemaMismatch
		}

		return errors.ErrCodeDecodeError
	default:
		return errors.ErrCodeInternal
	}
}

func newEngineError(kind Kind, endpoint string, status int, detail string, cause error) error {
	ee := &EngineError{
		Kind:       kind,
		Endpoint:   endpoint,
		StatusCode: status,
		Detail:     detail,
		Cause:      cause,
	}

	return errors.Wrap(codeFor(kind, false), "engine request failed", ee)
}

func newSchemaError(endpoint, detail string) error {
	ee := &EngineError{
		Kind:       KindDecode,
		Endpoint:   endpoint,
		StatusCode: 0,
		Detail:     detail,
		Cause:      nil,
	}

	return errors.Wrap(codeFor(KindDecode, true), "engine response violates schema", ee)
}

// AsEngineError extracts the EngineError from err's chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}

	return nil, false
}

// KindOf returns the engine failure kind of err, or "" when err did not come
// from an engine call.
func KindOf(err error) Kind {
	if ee, ok := AsEngineError(err); ok {
		return ee.Kind
	}

	return ""
}
