package version

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// CheckEngineAPI checks the engine's reported api_version against a semver
// constraint such as ">= 2.0". An empty constraint accepts any version.
//
// The engine reports its API version as a float (2.34), which is read as
// major 2, minor 34.
//
// Examples:
//   - 2.34 against ">= 2.0"  -> OK
//   - 1.9 against ">= 2.0"   -> ERROR (below constraint)
//   - 2.34 against "~2.30"   -> OK (same major.minor range)
//   - 0 against ">= 2.0"     -> ERROR (engine did not report a version)
func CheckEngineAPI(apiVersion float64, constraint string) error {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid api version constraint %q", constraint)
	}

	if apiVersion <= 0 {
		return errors.New(errors.ErrCodeInvalidVersion, "engine did not report an api version")
	}

	raw := strconv.FormatFloat(apiVersion, 'f', -1, 64)

	v, err := semver.NewVersion(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid engine api version %q", raw)
	}

	if ok, reasons := c.Validate(v); !ok {
		msg := "engine api version " + raw + " does not satisfy " + constraint
		if len(reasons) > 0 {
			msg += ": " + reasons[0].Error()
		}

		return errors.New(errors.ErrCodeInvalidVersion, msg)
	}

	return nil
}

// CheckVersionCompatibility checks that two build versions share major and
// minor. Used to compare the dashboard with the monitor it connects to.
// Development builds ("main") always pass.
func CheckVersionCompatibility(serverVersion, clientVersion string) error {
	serverVersion = strings.TrimPrefix(serverVersion, "v")
	clientVersion = strings.TrimPrefix(clientVersion, "v")

	if serverVersion == "main" || clientVersion == "main" {
		return nil
	}

	server, err := semver.NewVersion(serverVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid server version '%s'", serverVersion)
	}

	client, err := semver.NewVersion(clientVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid client version '%s'", clientVersion)
	}

	if server.Major() != client.Major() || server.Minor() != client.Minor() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "version mismatch: monitor is %d.%d.x but dashboard is %d.%d.x",
			server.Major(), server.Minor(), client.Major(), client.Minor())
	}

	return nil
}
