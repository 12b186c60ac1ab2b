// Package project models the build/deploy configuration of a smart-contract
// project: network targets, compilers, plugins, the block-explorer credential
// and the directory layout consumed by the build tooling.
//
// A Record is assembled and validated once, by Load, Decode or LoadFile, and
// is read-only afterwards. Accessors hand out copies so a Record can be shared
// between goroutines without locking.
package project

// Record is a validated build configuration.
type Record struct {
	// DefaultNetwork names the target used when none is given. Empty means
	// the tooling's own default.
	DefaultNetwork string
	// Networks is ordered by name.
	Networks  []NetworkTarget
	Plugins   []string
	Compilers []CompilerConfig
	Explorer  ExplorerCredential
	Paths     Paths
}

// NetworkTarget is a named JSON-RPC endpoint plus the credentials used to
// submit transactions through it.
type NetworkTarget struct {
	Name string
	URL  string
	// Accounts are hex-encoded private keys. Empty means the node's own
	// unlocked accounts are used.
	Accounts []string
	// GasPrice in wei. Nil leaves pricing to the tooling.
	GasPrice *int64
	// ChainID is optional; zero means unset.
	ChainID int64
	// From overrides the sender address; empty means the first account.
	From string
	// Timeout for RPC requests in milliseconds; zero means the tooling default.
	Timeout int64
}

// CompilerConfig selects a solc release and its optimizer settings.
type CompilerConfig struct {
	Version    string
	Optimizer  OptimizerConfig
	EVMVersion string
	ViaIR      bool
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool
	Runs    int64
}

// ExplorerCredential holds the block-explorer API key. An empty key disables
// source verification.
type ExplorerCredential struct {
	APIKey string
}

// PathRole names one of the directories the build tooling works with.
type PathRole string

// Path roles, all of which must be mapped.
const (
	RoleSources   PathRole = "sources"
	RoleTests     PathRole = "tests"
	RoleCache     PathRole = "cache"
	RoleArtifacts PathRole = "artifacts"
)

// PathRoles lists the required roles in declaration order.
var PathRoles = []PathRole{RoleSources, RoleTests, RoleCache, RoleArtifacts}

// Paths maps each role to a directory, relative to Root when not absolute.
type Paths struct {
	Root      string
	Sources   string
	Tests     string
	Cache     string
	Artifacts string
}
