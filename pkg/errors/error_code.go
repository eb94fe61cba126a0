package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeInternal ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidPair          ErrorCode = 103
	ErrCodeStakeAboveCap        ErrorCode = 104
	ErrCodeInvalidVersion       ErrorCode = 105

	// Engine transport errors (200-299)
	ErrCodeUnreachable    ErrorCode = 200
	ErrCodeAuthFailed     ErrorCode = 201
	ErrCodeTimeout        ErrorCode = 202
	ErrCodeBadStatus      ErrorCode = 203
	ErrCodeDecodeError    ErrorCode = 204
	ErrCodeSchemaMismatch ErrorCode = 205
	ErrCodeRateLimited    ErrorCode = 206

	// Evaluation errors (300-399)
	ErrCodeDataStale       ErrorCode = 300
	ErrCodeRuleConfigError ErrorCode = 301

	// Storage errors (400-499)
	ErrCodeStorageError ErrorCode = 400
	ErrCodeNotFound     ErrorCode = 401

	// Notification errors (500-599)
	ErrCodeChannelFailed    ErrorCode = 500
	ErrCodeChannelDisabled  ErrorCode = 501
	ErrCodeFeedFetchFailed  ErrorCode = 502
	ErrCodeChatUnauthorized ErrorCode = 503

	// Sweep errors (600-699)
	ErrCodeSweepConfigError ErrorCode = 600
	ErrCodeBacktestFailed   ErrorCode = 601
	ErrCodeResultParseError ErrorCode = 602
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:              "unknown",
	ErrCodeInternal:             "internal",
	ErrCodeInvalidParameter:     "invalid_parameter",
	ErrCodeInvalidConfiguration: "invalid_configuration",
	ErrCodeMissingParameter:     "missing_parameter",
	ErrCodeInvalidPair:          "invalid_pair",
	ErrCodeStakeAboveCap:        "stake_above_cap",
	ErrCodeInvalidVersion:       "invalid_version",
	ErrCodeUnreachable:          "unreachable",
	ErrCodeAuthFailed:           "auth",
	ErrCodeTimeout:              "timeout",
	ErrCodeBadStatus:            "bad_status",
	ErrCodeDecodeError:          "decode",
	ErrCodeSchemaMismatch:       "schema_mismatch",
	ErrCodeRateLimited:          "rate_limited",
	ErrCodeDataStale:            "data_stale",
	ErrCodeRuleConfigError:      "rule_config",
	ErrCodeStorageError:         "storage",
	ErrCodeNotFound:             "not_found",
	ErrCodeChannelFailed:        "channel_failed",
	ErrCodeChannelDisabled:      "channel_disabled",
	ErrCodeFeedFetchFailed:      "feed_fetch_failed",
	ErrCodeChatUnauthorized:     "unauthorized",
	ErrCodeSweepConfigError:     "sweep_config",
	ErrCodeBacktestFailed:       "backtest_failed",
	ErrCodeResultParseError:     "result_parse",
}

// String returns the short snake_case name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "unknown"
}

// IsClientError reports whether the code describes bad caller input.
func (c ErrorCode) IsClientError() bool {
	return c >= 100 && c < 200
}
