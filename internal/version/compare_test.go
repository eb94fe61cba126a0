package version

import (
	"testing"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEngineAPI(t *testing.T) {
	tests := []struct {
		name          string
		apiVersion    float64
		constraint    string
		expectError   bool
		errorContains string
	}{
		{
			name:        "above minimum",
			apiVersion:  2.34,
			constraint:  ">= 2.0",
			expectError: false,
		},
		{
			name:        "exact minimum",
			apiVersion:  2,
			constraint:  ">= 2.0",
			expectError: false,
		},
		{
			name:        "empty constraint",
			apiVersion:  1.1,
			constraint:  "",
			expectError: false,
		},
		{
			name:          "below minimum",
			apiVersion:    1.9,
			constraint:    ">= 2.0",
			expectError:   true,
			errorContains: "does not satisfy",
		},
		{
			name:          "not reported",
			apiVersion:    0,
			constraint:    ">= 2.0",
			expectError:   true,
			errorContains: "did not report",
		},
		{
			name:          "bad constraint",
			apiVersion:    2.3,
			constraint:    "not a constraint",
			expectError:   true,
			errorContains: "invalid api version constraint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEngineAPI(tt.apiVersion, tt.constraint)
			if !tt.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidVersion))
		})
	}
}

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		clientVersion string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", serverVersion: "1.2.0", clientVersion: "1.2.0"},
		{name: "patch differs", serverVersion: "1.2.1", clientVersion: "1.2.9"},
		{name: "v prefix", serverVersion: "v1.2.0", clientVersion: "1.2.3"},
		{name: "development server", serverVersion: "main", clientVersion: "1.2.0"},
		{name: "development client", serverVersion: "1.2.0", clientVersion: "main"},
		{name: "minor differs", serverVersion: "1.3.0", clientVersion: "1.2.0", expectError: true, errorContains: "version mismatch"},
		{name: "major differs", serverVersion: "2.2.0", clientVersion: "1.2.0", expectError: true, errorContains: "version mismatch"},
		{name: "invalid server", serverVersion: "abc", clientVersion: "1.2.0", expectError: true, errorContains: "invalid server version"},
		{name: "invalid client", serverVersion: "1.2.0", clientVersion: "xyz", expectError: true, errorContains: "invalid client version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionCompatibility(tt.serverVersion, tt.clientVersion)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.4.2"
	assert.Equal(t, "1.4.2", GetVersion())
}
