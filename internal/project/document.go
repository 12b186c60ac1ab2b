package project

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/buildcfg/internal/validation"
)

// Document is the declared, serializable form of a configuration, shaped like
// the configuration object the build tooling reads. String values may hold
// ${VAR} references that are expanded by Resolve.
type Document struct {
	DefaultNetwork string                     `json:"defaultNetwork,omitempty" toml:"defaultNetwork,omitempty" yaml:"defaultNetwork,omitempty"`
	Networks       map[string]NetworkDocument `json:"networks" toml:"networks" yaml:"networks"`
	Plugins        []string                   `json:"plugins" toml:"plugins" yaml:"plugins"`
	Solidity       SolidityDocument           `json:"solidity" toml:"solidity" yaml:"solidity"`
	Etherscan      EtherscanDocument          `json:"etherscan" toml:"etherscan" yaml:"etherscan"`
	Paths          PathsDocument              `json:"paths" toml:"paths" yaml:"paths"`
}

// NetworkDocument is one entry of the networks table.
type NetworkDocument struct {
	URL      string   `json:"url" toml:"url" yaml:"url"`
	Accounts []string `json:"accounts,omitempty" toml:"accounts,omitempty" yaml:"accounts,omitempty"`
	GasPrice *int64   `json:"gasPrice,omitempty" toml:"gasPrice,omitempty" yaml:"gasPrice,omitempty"`
	ChainID  int64    `json:"chainId,omitempty" toml:"chainId,omitempty" yaml:"chainId,omitempty"`
	From     string   `json:"from,omitempty" toml:"from,omitempty" yaml:"from,omitempty"`
	Timeout  int64    `json:"timeout,omitempty" toml:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SolidityDocument lists compiler configurations.
type SolidityDocument struct {
	Compilers []CompilerDocument `json:"compilers" toml:"compilers" yaml:"compilers"`
}

// CompilerDocument is one compiler configuration.
type CompilerDocument struct {
	Version  string           `json:"version" toml:"version" yaml:"version"`
	Settings SettingsDocument `json:"settings" toml:"settings" yaml:"settings"`
}

// SettingsDocument holds compiler settings.
type SettingsDocument struct {
	Optimizer  OptimizerDocument `json:"optimizer" toml:"optimizer" yaml:"optimizer"`
	EVMVersion string            `json:"evmVersion,omitempty" toml:"evmVersion,omitempty" yaml:"evmVersion,omitempty"`
	ViaIR      bool              `json:"viaIR,omitempty" toml:"viaIR,omitempty" yaml:"viaIR,omitempty"`
}

// OptimizerDocument holds optimizer settings.
type OptimizerDocument struct {
	Enabled bool  `json:"enabled" toml:"enabled" yaml:"enabled"`
	Runs    int64 `json:"runs" toml:"runs" yaml:"runs"`
}

// EtherscanDocument holds the explorer credential.
type EtherscanDocument struct {
	APIKey string `json:"apiKey,omitempty" toml:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

// PathsDocument maps path roles to directories.
type PathsDocument struct {
	Root      string `json:"root,omitempty" toml:"root,omitempty" yaml:"root,omitempty"`
	Sources   string `json:"sources" toml:"sources" yaml:"sources"`
	Tests     string `json:"tests" toml:"tests" yaml:"tests"`
	Cache     string `json:"cache" toml:"cache" yaml:"cache"`
	Artifacts string `json:"artifacts" toml:"artifacts" yaml:"artifacts"`
}

// envReference matches a value that is exactly one ${VAR} or $VAR reference.
var envReference = regexp.MustCompile(`^\$(\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)$`)

// IsEnvReference reports whether s is a single environment reference.
func IsEnvReference(s string) bool {
	return envReference.MatchString(strings.TrimSpace(s))
}

// escapeLiteral protects a resolved value from expansion, so "$" survives
// Resolve as written.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// Document converts the record into its declared form. Values are written
// literally; any "$" they hold is escaped as "$$".
func (r *Record) Document() *Document {
	return r.document(escapeLiteral)
}

func (r *Record) document(literal func(string) string) *Document {
	d := &Document{
		DefaultNetwork: literal(r.DefaultNetwork),
		Networks:       make(map[string]NetworkDocument, len(r.Networks)),
		Plugins:        append([]string{}, r.Plugins...),
		Etherscan:      EtherscanDocument{APIKey: literal(r.Explorer.APIKey)},
		Paths: PathsDocument{
			Root:      literal(r.Paths.Root),
			Sources:   literal(r.Paths.Sources),
			Tests:     literal(r.Paths.Tests),
			Cache:     literal(r.Paths.Cache),
			Artifacts: literal(r.Paths.Artifacts),
		},
	}
	for _, n := range r.Networks {
		c := n.clone()
		for i, account := range c.Accounts {
			c.Accounts[i] = literal(account)
		}
		d.Networks[n.Name] = NetworkDocument{
			URL:      literal(c.URL),
			Accounts: c.Accounts,
			GasPrice: c.GasPrice,
			ChainID:  c.ChainID,
			From:     literal(c.From),
			Timeout:  c.Timeout,
		}
	}
	for _, c := range r.Compilers {
		d.Solidity.Compilers = append(d.Solidity.Compilers, CompilerDocument{
			Version: validation.NormalizeVersion(c.Version),
			Settings: SettingsDocument{
				Optimizer:  OptimizerDocument{Enabled: c.Optimizer.Enabled, Runs: c.Optimizer.Runs},
				EVMVersion: c.EVMVersion,
				ViaIR:      c.ViaIR,
			},
		})
	}
	return d
}

// Resolve expands ${VAR} references from env, assembles the record and
// validates it. "$$" stands for a literal "$". A value that is a single
// reference takes the variable's value verbatim, as Load does. An account
// whose reference expands to nothing is dropped, the same way Load treats an
// unset PRIVATE_KEY; an account written as an empty string is an
// EmptyCredential error.
func (d *Document) Resolve(env Env) (*Record, error) {
	expand := func(s string) string {
		if IsEnvReference(s) {
			s = strings.TrimSpace(s)
		}
		return os.Expand(s, func(name string) string {
			if name == "$" {
				return "$"
			}
			return env.Get(name)
		})
	}

	r := &Record{
		DefaultNetwork: expand(d.DefaultNetwork),
		Plugins:        append([]string(nil), d.Plugins...),
		Explorer:       ExplorerCredential{APIKey: expand(d.Etherscan.APIKey)},
		Paths: Paths{
			Root:      expand(d.Paths.Root),
			Sources:   expand(d.Paths.Sources),
			Tests:     expand(d.Paths.Tests),
			Cache:     expand(d.Paths.Cache),
			Artifacts: expand(d.Paths.Artifacts),
		},
	}

	for name, nd := range d.Networks {
		n := NetworkTarget{
			Name:    name,
			URL:     expand(nd.URL),
			ChainID: nd.ChainID,
			From:    expand(nd.From),
			Timeout: nd.Timeout,
		}
		if nd.GasPrice != nil {
			gp := *nd.GasPrice
			n.GasPrice = &gp
		}
		for _, raw := range nd.Accounts {
			if strings.TrimSpace(raw) == "" {
				n.Accounts = append(n.Accounts, raw)
				continue
			}
			value := expand(raw)
			if value == "" && IsEnvReference(raw) {
				continue
			}
			n.Accounts = append(n.Accounts, value)
		}
		r.Networks = append(r.Networks, n)
	}
	sortNetworks(r.Networks)

	for _, cd := range d.Solidity.Compilers {
		r.Compilers = append(r.Compilers, CompilerConfig{
			Version: validation.NormalizeVersion(cd.Version),
			Optimizer: OptimizerConfig{
				Enabled: cd.Settings.Optimizer.Enabled,
				Runs:    cd.Settings.Optimizer.Runs,
			},
			EVMVersion: cd.Settings.EVMVersion,
			ViaIR:      cd.Settings.ViaIR,
		})
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LiteralSecrets lists the fields that hold a credential or API key written
// out literally instead of as an environment reference.
func (d *Document) LiteralSecrets() []string {
	var fields []string
	names := make([]string, 0, len(d.Networks))
	for name := range d.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for i, account := range d.Networks[name].Accounts {
			if strings.TrimSpace(account) != "" && !IsEnvReference(account) {
				fields = append(fields, fmt.Sprintf("networks.%s.accounts[%d]", name, i))
			}
		}
	}
	if key := d.Etherscan.APIKey; strings.TrimSpace(key) != "" && !IsEnvReference(key) {
		fields = append(fields, "etherscan.apiKey")
	}
	return fields
}

// HasLiteralSecrets reports whether a serialized document holds a literal
// credential or explorer key.
func HasLiteralSecrets(data []byte, format Format) (bool, error) {
	doc, err := ParseDocument(data, format)
	if err != nil {
		return false, err
	}
	return len(doc.LiteralSecrets()) > 0, nil
}

// ParseDocument decodes data without expanding references. Unknown keys are
// rejected so typos surface instead of being silently ignored.
func ParseDocument(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, newError(KindDecode, "json", "", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, newError(KindDecode, "toml", "", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, newError(KindDecode, "toml", "", fmt.Errorf("unknown key %s", undecoded[0]))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("empty document")
			}
			return nil, newError(KindDecode, "yaml", "", err)
		}
	default:
		return nil, newError(KindDecode, "format", string(format), errors.New("unsupported format"))
	}
	return &doc, nil
}

// EncodeDocument serializes a document.
func EncodeDocument(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding toml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Encode serializes the record in its declared form.
func Encode(r *Record, format Format) ([]byte, error) {
	return EncodeDocument(r.Document(), format)
}

// Decode parses data, expands references from env and validates the result.
func Decode(data []byte, format Format, env Env) (*Record, error) {
	doc, err := ParseDocument(data, format)
	if err != nil {
		return nil, err
	}
	return doc.Resolve(env)
}

// Fingerprint is the hex sha256 of the document's compact JSON encoding.
// Map keys are sorted by encoding/json and empty lists are hashed like absent
// ones, so a document shares its fingerprint across all three formats.
func (d *Document) Fingerprint() string {
	data, _ := json.Marshal(d.normalized())
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (d *Document) normalized() *Document {
	n := *d
	if len(n.Plugins) == 0 {
		n.Plugins = nil
	}
	if len(n.Solidity.Compilers) == 0 {
		n.Solidity.Compilers = nil
	} else {
		n.Solidity.Compilers = make([]CompilerDocument, len(d.Solidity.Compilers))
		for i, c := range d.Solidity.Compilers {
			c.Version = validation.NormalizeVersion(c.Version)
			n.Solidity.Compilers[i] = c
		}
	}
	if len(d.Networks) == 0 {
		n.Networks = nil
		return &n
	}
	n.Networks = make(map[string]NetworkDocument, len(d.Networks))
	for name, nd := range d.Networks {
		if len(nd.Accounts) == 0 {
			nd.Accounts = nil
		}
		n.Networks[name] = nd
	}
	return &n
}

// Fingerprint identifies the record's configuration.
func (r *Record) Fingerprint() string {
	return r.Document().Fingerprint()
}
