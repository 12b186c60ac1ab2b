package project

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"slices"

	"github.com/pendergraft/buildcfg/internal/validation"
)

// redactedSecret replaces credentials and API keys in redacted records.
const redactedSecret = "********"

// Network returns a copy of the named target.
func (r *Record) Network(name string) (NetworkTarget, bool) {
	for _, n := range r.Networks {
		if n.Name == name {
			return n.clone(), true
		}
	}
	return NetworkTarget{}, false
}

// NetworkNames returns the target names in order.
func (r *Record) NetworkNames() []string {
	names := make([]string, len(r.Networks))
	for i, n := range r.Networks {
		names[i] = n.Name
	}
	return names
}

// RequireSigner returns the credentials to sign with on the named target.
// Loopback targets without credentials sign with the node's own accounts and
// yield no error; any other target without credentials yields
// ErrMissingCredential.
func (r *Record) RequireSigner(name string) ([]string, error) {
	n, ok := r.Network(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
	}
	if len(n.Accounts) > 0 {
		return n.Accounts, nil
	}
	if n.IsLoopback() {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s (set %s)", ErrMissingCredential, name, EnvPrivateKey)
}

// VerificationEnabled reports whether an explorer API key is configured.
func (r *Record) VerificationEnabled() bool {
	return r.Explorer.APIKey != ""
}

// Redacted returns a copy with every credential and the explorer key masked.
func (r *Record) Redacted() *Record {
	c := r.Clone()
	for i := range c.Networks {
		for j := range c.Networks[i].Accounts {
			c.Networks[i].Accounts[j] = redactedSecret
		}
	}
	if c.Explorer.APIKey != "" {
		c.Explorer.APIKey = redactedSecret
	}
	return c
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Networks = make([]NetworkTarget, len(r.Networks))
	for i, n := range r.Networks {
		c.Networks[i] = n.clone()
	}
	c.Plugins = slices.Clone(r.Plugins)
	c.Compilers = slices.Clone(r.Compilers)
	return &c
}

// Equal reports whether two records hold the same configuration. Nil and
// empty lists compare equal.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.DefaultNetwork == o.DefaultNetwork &&
		slices.EqualFunc(r.Networks, o.Networks, NetworkTarget.Equal) &&
		slices.Equal(r.Plugins, o.Plugins) &&
		slices.EqualFunc(r.Compilers, o.Compilers, CompilerConfig.Equal) &&
		r.Explorer == o.Explorer &&
		r.Paths == o.Paths
}

// Equal reports whether two compiler configurations are the same. A "v"
// prefix on the version is not significant.
func (c CompilerConfig) Equal(o CompilerConfig) bool {
	c.Version = validation.NormalizeVersion(c.Version)
	o.Version = validation.NormalizeVersion(o.Version)
	return c == o
}

// Equal reports whether two targets are identical.
func (n NetworkTarget) Equal(o NetworkTarget) bool {
	if (n.GasPrice == nil) != (o.GasPrice == nil) {
		return false
	}
	if n.GasPrice != nil && *n.GasPrice != *o.GasPrice {
		return false
	}
	return n.Name == o.Name &&
		n.URL == o.URL &&
		slices.Equal(n.Accounts, o.Accounts) &&
		n.ChainID == o.ChainID &&
		n.From == o.From &&
		n.Timeout == o.Timeout
}

// IsLoopback reports whether the endpoint points at the local machine.
func (n NetworkTarget) IsLoopback() bool {
	u, err := url.Parse(n.URL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (n NetworkTarget) clone() NetworkTarget {
	c := n
	c.Accounts = slices.Clone(n.Accounts)
	if n.GasPrice != nil {
		gp := *n.GasPrice
		c.GasPrice = &gp
	}
	return c
}

// Get returns the directory mapped to role.
func (p Paths) Get(role PathRole) string {
	switch role {
	case RoleSources:
		return p.Sources
	case RoleTests:
		return p.Tests
	case RoleCache:
		return p.Cache
	case RoleArtifacts:
		return p.Artifacts
	default:
		return ""
	}
}

// Resolve joins every relative path onto root. When root is empty the
// record's own Root is used; absolute paths are kept as they are.
func (p Paths) Resolve(root string) Paths {
	if root == "" {
		root = p.Root
	}
	join := func(dir string) string {
		if dir == "" || filepath.IsAbs(dir) || root == "" {
			return dir
		}
		return filepath.Join(root, dir)
	}
	return Paths{
		Root:      root,
		Sources:   join(p.Sources),
		Tests:     join(p.Tests),
		Cache:     join(p.Cache),
		Artifacts: join(p.Artifacts),
	}
}
