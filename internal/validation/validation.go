// Package validation provides input validation for buildcfg.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Network names: lowercase alphanumeric with hyphens, 1-64 chars
var networkNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// Project names: same shape as network names but at least 2 chars
var projectNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}[a-z0-9]$`)

// ValidateNetworkName validates a network target name
func ValidateNetworkName(name string) error {
	if name == "" {
		return errors.New("network name cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("network name too long (max 64 chars)")
	}
	if !networkNameRegex.MatchString(name) || strings.Contains(name, "--") {
		return errors.New("invalid network name: must be lowercase alphanumeric with single hyphens")
	}
	return nil
}

// ValidateProjectName validates a snapshot project name
func ValidateProjectName(name string) error {
	if len(name) < 2 {
		return errors.New("project name too short (min 2 chars)")
	}
	if len(name) > 64 {
		return errors.New("project name too long (max 64 chars)")
	}
	if !projectNameRegex.MatchString(name) {
		return errors.New("invalid project name: must be lowercase alphanumeric with hyphens, starting with a letter")
	}
	// Prevent path traversal and consecutive hyphens
	if strings.Contains(name, "..") || strings.Contains(name, "--") {
		return errors.New("invalid characters in project name")
	}
	return nil
}

// rpcSchemes are the URL schemes JSON-RPC endpoints may use
var rpcSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
}

// ValidateEndpointURL validates a JSON-RPC endpoint URL
func ValidateEndpointURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("endpoint URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		// url.Error quotes the whole URL, which may embed a provider key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if !rpcSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("invalid endpoint URL: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("invalid endpoint URL: missing host")
	}
	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid endpoint URL: bad port %q", port)
		}
	}
	return nil
}

// solcReleases lists each supported solc minor line with its first and last patch release.
// 0.4.x starts at 0.4.11, the first release with standard JSON output.
var solcReleases = []struct {
	minor      string
	firstPatch int
	lastPatch  int
}{
	{"0.4", 11, 26},
	{"0.5", 0, 17},
	{"0.6", 0, 12},
	{"0.7", 0, 6},
	{"0.8", 0, 28},
}

// ValidateCompilerVersion validates a solc release identifier such as "0.8.16".
// A leading "v" is tolerated. Prereleases, nightlies and build metadata are rejected.
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}
	if !semver.IsValid("v" + normalized) {
		return fmt.Errorf("invalid compiler version %q: must be in format X.Y.Z", v)
	}
	if semver.Prerelease("v"+normalized) != "" || semver.Build("v"+normalized) != "" {
		return fmt.Errorf("unsupported compiler version %q: prerelease and nightly builds are not supported", v)
	}
	if strings.Count(normalized, ".") != 2 {
		return fmt.Errorf("invalid compiler version %q: must be in format X.Y.Z", v)
	}

	minor := semver.MajorMinor("v" + normalized)[1:]
	patch, err := strconv.Atoi(normalized[strings.LastIndex(normalized, ".")+1:])
	if err != nil {
		return fmt.Errorf("invalid compiler version %q: %w", v, err)
	}
	for _, r := range solcReleases {
		if r.minor != minor {
			continue
		}
		if patch < r.firstPatch || patch > r.lastPatch {
			return fmt.Errorf("unsupported compiler version %q: %s releases range from %s.%d to %s.%d",
				v, r.minor, r.minor, r.firstPatch, r.minor, r.lastPatch)
		}
		return nil
	}
	return fmt.Errorf("unsupported compiler version %q: unknown release line %s", v, minor)
}

// SupportedCompilerVersions lists every supported solc release, oldest first
func SupportedCompilerVersions() []string {
	var versions []string
	for _, r := range solcReleases {
		for p := r.firstPatch; p <= r.lastPatch; p++ {
			versions = append(versions, fmt.Sprintf("%s.%d", r.minor, p))
		}
	}
	return versions
}

// evmVersions are the hard-fork targets solc accepts for evmVersion
var evmVersions = map[string]bool{
	"homestead":        true,
	"tangerineWhistle": true,
	"spuriousDragon":   true,
	"byzantium":        true,
	"constantinople":   true,
	"petersburg":       true,
	"istanbul":         true,
	"berlin":           true,
	"london":           true,
	"paris":            true,
	"shanghai":         true,
	"cancun":           true,
	"prague":           true,
}

// ValidateEVMVersion validates a solc evmVersion target
func ValidateEVMVersion(v string) error {
	if !evmVersions[v] {
		return fmt.Errorf("unknown EVM version %q", v)
	}
	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	n1 := "v" + NormalizeVersion(v1)
	n2 := "v" + NormalizeVersion(v2)
	return semver.Compare(n1, n2)
}

// ResolveLatest finds the latest version from a list
func ResolveLatest(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	// Check hex characters
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
