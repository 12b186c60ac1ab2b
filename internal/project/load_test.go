package project

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hardhat's first well-known development account
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func fullEnv() Env {
	return Env{EnvPrivateKey: devKey, EnvEtherscan: "ABCDEF123456"}
}

func TestLoad_Defaults(t *testing.T) {
	r, err := Load(fullEnv())
	require.NoError(t, err)

	assert.Equal(t, []string{NetworkLocal, NetworkTest}, r.NetworkNames())

	local, ok := r.Network(NetworkLocal)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8545", local.URL)
	assert.Empty(t, local.Accounts)
	assert.Nil(t, local.GasPrice)

	test, ok := r.Network(NetworkTest)
	require.True(t, ok)
	assert.Equal(t, TestNetworkURL, test.URL)
	assert.Equal(t, []string{devKey}, test.Accounts)
	require.NotNil(t, test.GasPrice)
	assert.Equal(t, int64(30000000000), *test.GasPrice)

	assert.Equal(t, []string{"solidity-coverage"}, r.Plugins)
	require.Len(t, r.Compilers, 1)
	assert.Equal(t, CompilerConfig{Version: "0.8.16", Optimizer: OptimizerConfig{Enabled: true, Runs: 200}}, r.Compilers[0])
	assert.Equal(t, "ABCDEF123456", r.Explorer.APIKey)
	assert.True(t, r.VerificationEnabled())
}

func TestLoad_PathRolesMatchDefaults(t *testing.T) {
	envs := []Env{
		nil,
		{},
		fullEnv(),
		{EnvPrivateKey: devKey},
		{EnvEtherscan: "key"},
		{"UNRELATED": "value"},
	}

	for _, env := range envs {
		r, err := Load(env)
		require.NoError(t, err)
		assert.Equal(t, "./contracts", r.Paths.Get(RoleSources))
		assert.Equal(t, "./test", r.Paths.Get(RoleTests))
		assert.Equal(t, "./cache", r.Paths.Get(RoleCache))
		assert.Equal(t, "./artifacts", r.Paths.Get(RoleArtifacts))
	}
}

func TestLoad_MissingPrivateKey(t *testing.T) {
	for name, env := range map[string]Env{
		"unset": {EnvEtherscan: "key"},
		"empty": {EnvPrivateKey: "", EnvEtherscan: "key"},
	} {
		t.Run(name, func(t *testing.T) {
			r, err := Load(env)
			require.NoError(t, err)

			test, ok := r.Network(NetworkTest)
			require.True(t, ok)
			assert.Empty(t, test.Accounts)

			_, err = r.RequireSigner(NetworkTest)
			assert.ErrorIs(t, err, ErrMissingCredential)

			// the loopback target signs with the node's own accounts
			accounts, err := r.RequireSigner(NetworkLocal)
			assert.NoError(t, err)
			assert.Empty(t, accounts)
		})
	}
}

func TestLoad_MissingEtherscan(t *testing.T) {
	r, err := Load(Env{EnvPrivateKey: devKey})
	require.NoError(t, err)

	assert.Empty(t, r.Explorer.APIKey)
	assert.False(t, r.VerificationEnabled())
	assert.NoError(t, r.Validate())
}

func TestLoad_Idempotent(t *testing.T) {
	env := fullEnv()
	a, err := Load(env)
	require.NoError(t, err)
	b, err := Load(env)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a, b)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	// separate values, not a shared singleton
	*b.Networks[1].GasPrice = 1
	assert.Equal(t, TestNetworkGasWei, *a.Networks[1].GasPrice)
}

func TestRequireSigner(t *testing.T) {
	r, err := Load(fullEnv())
	require.NoError(t, err)

	accounts, err := r.RequireSigner(NetworkTest)
	require.NoError(t, err)
	assert.Equal(t, []string{devKey}, accounts)

	_, err = r.RequireSigner("mainnet")
	assert.ErrorIs(t, err, ErrNetworkNotFound)
}

func TestEnvFromEnviron(t *testing.T) {
	env := EnvFromEnviron([]string{"PRIVATE_KEY=0xabc", "EMPTY=", "WITH_EQUALS=a=b", "=bogus", "NOEQUALS"})

	assert.Equal(t, "0xabc", env.Get("PRIVATE_KEY"))
	assert.Equal(t, "a=b", env.Get("WITH_EQUALS"))

	_, ok := env.Lookup("EMPTY")
	assert.False(t, ok)
	_, ok = env.Lookup("NOEQUALS")
	assert.False(t, ok)
	assert.Len(t, env, 3)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		kind   ErrorKind
		target error
		field  string
	}{
		{
			name:   "negative gas price",
			mutate: func(r *Record) { gp := int64(-1); r.Networks[1].GasPrice = &gp },
			kind:   KindNegativeGasPrice,
			target: ErrNegativeGasPrice,
			field:  "networks.test-network.gasPrice",
		},
		{
			name:   "optimizer enabled with zero runs",
			mutate: func(r *Record) { r.Compilers[0].Optimizer.Runs = 0 },
			kind:   KindInvalidOptimizerRuns,
			target: ErrInvalidOptimizerRuns,
			field:  "solidity.compilers[0].settings.optimizer.runs",
		},
		{
			name:   "optimizer runs beyond solc limit",
			mutate: func(r *Record) { r.Compilers[0].Optimizer.Runs = 1 << 32 },
			kind:   KindInvalidOptimizerRuns,
			target: ErrInvalidOptimizerRuns,
			field:  "solidity.compilers[0].settings.optimizer.runs",
		},
		{
			name:   "malformed url",
			mutate: func(r *Record) { r.Networks[0].URL = "localhost:8545" },
			kind:   KindMalformedURL,
			target: ErrMalformedURL,
			field:  "networks.local.url",
		},
		{
			name:   "missing url",
			mutate: func(r *Record) { r.Networks[1].URL = "" },
			kind:   KindMalformedURL,
			target: ErrMalformedURL,
			field:  "networks.test-network.url",
		},
		{
			name:   "empty credential",
			mutate: func(r *Record) { r.Networks[1].Accounts = []string{devKey, " "} },
			kind:   KindEmptyCredential,
			target: ErrEmptyCredential,
			field:  "networks.test-network.accounts[1]",
		},
		{
			name:   "unsupported compiler",
			mutate: func(r *Record) { r.Compilers[0].Version = "0.9.1" },
			kind:   KindUnsupportedCompilerVersion,
			target: ErrUnsupportedCompilerVersion,
			field:  "solidity.compilers[0].version",
		},
		{
			name:   "missing artifacts path",
			mutate: func(r *Record) { r.Paths.Artifacts = "" },
			kind:   KindMissingPathRole,
			target: ErrMissingPathRole,
			field:  "paths.artifacts",
		},
		{
			name:   "blank sources path",
			mutate: func(r *Record) { r.Paths.Sources = "  " },
			kind:   KindMissingPathRole,
			target: ErrMissingPathRole,
			field:  "paths.sources",
		},
		{
			name:   "duplicate network",
			mutate: func(r *Record) { r.Networks = append(r.Networks, r.Networks[0]) },
			kind:   KindDuplicateNetwork,
			target: ErrDuplicateNetwork,
			field:  "networks.local",
		},
		{
			name:   "invalid network name",
			mutate: func(r *Record) { r.Networks[0].Name = "Local Node" },
			kind:   KindInvalidNetworkName,
			target: ErrInvalidNetworkName,
			field:  "networks",
		},
		{
			name:   "unknown plugin",
			mutate: func(r *Record) { r.Plugins = append(r.Plugins, "hardhat-nonexistent") },
			kind:   KindUnknownPlugin,
			target: ErrUnknownPlugin,
			field:  "plugins[1]",
		},
		{
			name:   "negative chain id",
			mutate: func(r *Record) { r.Networks[1].ChainID = -5 },
			kind:   KindInvalidChainID,
			target: ErrInvalidChainID,
			field:  "networks.test-network.chainId",
		},
		{
			name:   "bad from address",
			mutate: func(r *Record) { r.Networks[1].From = "0x1234" },
			kind:   KindInvalidAddress,
			target: ErrInvalidAddress,
			field:  "networks.test-network.from",
		},
		{
			name:   "negative timeout",
			mutate: func(r *Record) { r.Networks[0].Timeout = -1 },
			kind:   KindInvalidTimeout,
			target: ErrInvalidTimeout,
			field:  "networks.local.timeout",
		},
		{
			name:   "unknown default network",
			mutate: func(r *Record) { r.DefaultNetwork = "mainnet" },
			kind:   KindUnknownDefaultNetwork,
			target: ErrUnknownDefaultNetwork,
			field:  "defaultNetwork",
		},
		{
			name:   "unknown evm version",
			mutate: func(r *Record) { r.Compilers[0].EVMVersion = "merge" },
			kind:   KindInvalidEVMVersion,
			target: ErrInvalidEVMVersion,
			field:  "solidity.compilers[0].settings.evmVersion",
		},
		{
			name:   "no compilers",
			mutate: func(r *Record) { r.Compilers = nil },
			kind:   KindMissingCompiler,
			target: ErrMissingCompiler,
			field:  "solidity.compilers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Defaults(fullEnv())
			tt.mutate(r)

			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.kind, cfgErr.Kind)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.field)

			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestValidate_FirstViolationWins(t *testing.T) {
	r := Defaults(fullEnv())
	r.Compilers[0].Optimizer.Runs = 0
	r.Paths.Cache = ""
	gp := int64(-10)
	r.Networks[1].GasPrice = &gp

	err := r.Validate()
	assert.ErrorIs(t, err, ErrNegativeGasPrice)
	assert.NotErrorIs(t, err, ErrInvalidOptimizerRuns)
}

func TestValidate_DisabledOptimizerIgnoresRuns(t *testing.T) {
	r := Defaults(fullEnv())
	r.Compilers[0].Optimizer = OptimizerConfig{Enabled: false, Runs: 0}
	assert.NoError(t, r.Validate())
}

func TestValidate_ZeroGasPriceAllowed(t *testing.T) {
	r := Defaults(fullEnv())
	zero := int64(0)
	r.Networks[1].GasPrice = &zero
	assert.NoError(t, r.Validate())
}

func TestConfigError_NeverLeaksCredentials(t *testing.T) {
	r := Defaults(fullEnv())
	r.Networks[1].URL = "https://rpc.example.com:notaport/" + devKey
	err := r.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), devKey[2:])
}

func TestKindOf_NonConfigError(t *testing.T) {
	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestTemplate(t *testing.T) {
	doc := Template()
	assert.Empty(t, doc.LiteralSecrets())
	assert.Equal(t, []string{"${PRIVATE_KEY}"}, doc.Networks[NetworkTest].Accounts)
	assert.Equal(t, "${ETHERSCAN}", doc.Etherscan.APIKey)

	r, err := doc.Resolve(fullEnv())
	require.NoError(t, err)
	want, err := Load(fullEnv())
	require.NoError(t, err)
	assert.True(t, want.Equal(r))
}
