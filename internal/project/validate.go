package project

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pendergraft/buildcfg/internal/validation"
)

// maxOptimizerRuns is the largest value solc accepts for optimizer runs.
const maxOptimizerRuns = 1<<32 - 1

// knownPlugins are the tooling plugins a record may reference.
var knownPlugins = map[string]bool{
	"solidity-coverage":                true,
	"@nomiclabs/hardhat-etherscan":     true,
	"@nomiclabs/hardhat-waffle":        true,
	"@nomiclabs/hardhat-ethers":        true,
	"@nomicfoundation/hardhat-toolbox": true,
	"@nomicfoundation/hardhat-verify":  true,
	"@openzeppelin/hardhat-upgrades":   true,
	"hardhat-gas-reporter":             true,
	"hardhat-deploy":                   true,
	"@typechain/hardhat":               true,
}

// KnownPlugins returns the plugin names a record may reference, sorted.
func KnownPlugins() []string {
	names := make([]string, 0, len(knownPlugins))
	for name := range knownPlugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every constraint and returns the first violation as a
// *ConfigError. Networks are checked first, then the default network,
// compilers, plugins and paths.
func (r *Record) Validate() error {
	if err := validateNetworks(r.Networks); err != nil {
		return err
	}
	if r.DefaultNetwork != "" {
		if _, ok := r.Network(r.DefaultNetwork); !ok {
			return newError(KindUnknownDefaultNetwork, "defaultNetwork", r.DefaultNetwork, nil)
		}
	}
	if err := validateCompilers(r.Compilers); err != nil {
		return err
	}
	for i, name := range r.Plugins {
		if !knownPlugins[name] {
			return newError(KindUnknownPlugin, fmt.Sprintf("plugins[%d]", i), name, nil)
		}
	}
	return validatePaths(r.Paths)
}

func validateNetworks(networks []NetworkTarget) error {
	seen := make(map[string]bool, len(networks))
	for _, n := range networks {
		field := "networks." + n.Name
		if err := validation.ValidateNetworkName(n.Name); err != nil {
			return newError(KindInvalidNetworkName, "networks", n.Name, err)
		}
		if seen[n.Name] {
			return newError(KindDuplicateNetwork, field, n.Name, nil)
		}
		seen[n.Name] = true

		if err := validation.ValidateEndpointURL(n.URL); err != nil {
			return newError(KindMalformedURL, field+".url", "", err)
		}
		for i, account := range n.Accounts {
			if strings.TrimSpace(account) == "" {
				return newError(KindEmptyCredential, field+".accounts["+strconv.Itoa(i)+"]", "", nil)
			}
		}
		if n.GasPrice != nil && *n.GasPrice < 0 {
			return newError(KindNegativeGasPrice, field+".gasPrice", strconv.FormatInt(*n.GasPrice, 10), nil)
		}
		if n.ChainID != 0 {
			if err := validation.ValidateChainID(n.ChainID); err != nil {
				return newError(KindInvalidChainID, field+".chainId", strconv.FormatInt(n.ChainID, 10), err)
			}
		}
		if n.From != "" {
			if err := validation.ValidateAddress(n.From); err != nil {
				return newError(KindInvalidAddress, field+".from", n.From, err)
			}
		}
		if n.Timeout < 0 {
			return newError(KindInvalidTimeout, field+".timeout", strconv.FormatInt(n.Timeout, 10), nil)
		}
	}
	return nil
}

func validateCompilers(compilers []CompilerConfig) error {
	if len(compilers) == 0 {
		return newError(KindMissingCompiler, "solidity.compilers", "", nil)
	}
	for i, c := range compilers {
		field := fmt.Sprintf("solidity.compilers[%d]", i)
		if err := validation.ValidateCompilerVersion(c.Version); err != nil {
			return newError(KindUnsupportedCompilerVersion, field+".version", c.Version, err)
		}
		// Runs are ignored by solc while the optimizer is off.
		if c.Optimizer.Enabled && (c.Optimizer.Runs <= 0 || c.Optimizer.Runs > maxOptimizerRuns) {
			return newError(KindInvalidOptimizerRuns, field+".settings.optimizer.runs", strconv.FormatInt(c.Optimizer.Runs, 10), nil)
		}
		if c.EVMVersion != "" {
			if err := validation.ValidateEVMVersion(c.EVMVersion); err != nil {
				return newError(KindInvalidEVMVersion, field+".settings.evmVersion", c.EVMVersion, nil)
			}
		}
	}
	return nil
}

func validatePaths(p Paths) error {
	for _, role := range PathRoles {
		if strings.TrimSpace(p.Get(role)) == "" {
			return newError(KindMissingPathRole, "paths."+string(role), "", nil)
		}
	}
	return nil
}
