package project

import (
	"os"
	"sort"
	"strings"
)

// Environment variables read by Load.
const (
	EnvPrivateKey = "PRIVATE_KEY"
	EnvEtherscan  = "ETHERSCAN"
)

// Declared defaults.
const (
	NetworkLocal       = "local"
	NetworkTest        = "test-network"
	LocalURL           = "http://localhost:8545"
	TestNetworkURL     = "https://matic-mumbai.chainstacklabs.com"
	TestNetworkGasWei  = int64(30_000_000_000) // 30 gwei
	DefaultSolcVersion = "0.8.16"
	DefaultRuns        = int64(200)
	CoveragePlugin     = "solidity-coverage"
)

// Env maps environment variable names to values.
type Env map[string]string

// Lookup returns the value of key. A variable set to the empty string counts
// as unset.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Get returns the value of key, or "" when unset.
func (e Env) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// EnvFromEnviron builds an Env from KEY=VALUE pairs as returned by os.Environ.
func EnvFromEnviron(environ []string) Env {
	env := make(Env, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// OSEnv snapshots the process environment.
func OSEnv() Env {
	return EnvFromEnviron(os.Environ())
}

// Defaults assembles the declared configuration, taking the signing key and
// the explorer key from env. An unset PRIVATE_KEY leaves the test network
// without credentials; RequireSigner reports that when the target is used.
func Defaults(env Env) *Record {
	var accounts []string
	if key, ok := env.Lookup(EnvPrivateKey); ok {
		accounts = []string{key}
	}
	gasPrice := TestNetworkGasWei

	r := &Record{
		Networks: []NetworkTarget{
			{
				Name: NetworkLocal,
				URL:  LocalURL,
			},
			{
				Name:     NetworkTest,
				URL:      TestNetworkURL,
				Accounts: accounts,
				GasPrice: &gasPrice,
			},
		},
		Plugins: []string{CoveragePlugin},
		Compilers: []CompilerConfig{
			{
				Version: DefaultSolcVersion,
				Optimizer: OptimizerConfig{
					Enabled: true,
					Runs:    DefaultRuns,
				},
			},
		},
		Explorer: ExplorerCredential{APIKey: env.Get(EnvEtherscan)},
		Paths: Paths{
			Sources:   "./contracts",
			Tests:     "./test",
			Cache:     "./cache",
			Artifacts: "./artifacts",
		},
	}
	sortNetworks(r.Networks)
	return r
}

// Load assembles the declared configuration from env and validates it.
// On failure no record is returned and the error is a *ConfigError.
func Load(env Env) (*Record, error) {
	r := Defaults(env)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func sortNetworks(networks []NetworkTarget) {
	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].Name < networks[j].Name
	})
}

// Template is the declared configuration with the signing key and the explorer
// key left as ${VAR} references, ready to be written to a project file.
func Template() *Document {
	return Defaults(Env{
		EnvPrivateKey: "${" + EnvPrivateKey + "}",
		EnvEtherscan:  "${" + EnvEtherscan + "}",
	}).document(func(s string) string { return s })
}
