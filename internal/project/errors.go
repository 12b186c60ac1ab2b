package project

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ConfigError.
type ErrorKind string

// Error kinds reported by Validate.
const (
	KindMalformedURL               ErrorKind = "MalformedURL"
	KindEmptyCredential            ErrorKind = "EmptyCredential"
	KindNegativeGasPrice           ErrorKind = "NegativeGasPrice"
	KindUnsupportedCompilerVersion ErrorKind = "UnsupportedCompilerVersion"
	KindInvalidOptimizerRuns       ErrorKind = "InvalidOptimizerRuns"
	KindMissingPathRole            ErrorKind = "MissingPathRole"
	KindDuplicateNetwork           ErrorKind = "DuplicateNetwork"
	KindInvalidNetworkName         ErrorKind = "InvalidNetworkName"
	KindUnknownPlugin              ErrorKind = "UnknownPlugin"
	KindInvalidChainID             ErrorKind = "InvalidChainID"
	KindInvalidAddress             ErrorKind = "InvalidAddress"
	KindInvalidTimeout             ErrorKind = "InvalidTimeout"
	KindUnknownDefaultNetwork      ErrorKind = "UnknownDefaultNetwork"
	KindInvalidEVMVersion          ErrorKind = "InvalidEVMVersion"
	KindMissingCompiler            ErrorKind = "MissingCompiler"
	KindDecode                     ErrorKind = "Decode"
)

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrMalformedURL               = errors.New("malformed endpoint URL")
	ErrEmptyCredential            = errors.New("empty signing credential")
	ErrNegativeGasPrice           = errors.New("negative gas price")
	ErrUnsupportedCompilerVersion = errors.New("unsupported compiler version")
	ErrInvalidOptimizerRuns       = errors.New("invalid optimizer runs")
	ErrMissingPathRole            = errors.New("missing path role")
	ErrDuplicateNetwork           = errors.New("duplicate network")
	ErrInvalidNetworkName         = errors.New("invalid network name")
	ErrUnknownPlugin              = errors.New("unknown plugin")
	ErrInvalidChainID             = errors.New("invalid chain ID")
	ErrInvalidAddress             = errors.New("invalid address")
	ErrInvalidTimeout             = errors.New("invalid timeout")
	ErrUnknownDefaultNetwork      = errors.New("unknown default network")
	ErrInvalidEVMVersion          = errors.New("invalid EVM version")
	ErrMissingCompiler            = errors.New("no compiler configured")
	ErrDecode                     = errors.New("cannot decode configuration")
)

var sentinels = map[ErrorKind]error{
	KindMalformedURL:               ErrMalformedURL,
	KindEmptyCredential:            ErrEmptyCredential,
	KindNegativeGasPrice:           ErrNegativeGasPrice,
	KindUnsupportedCompilerVersion: ErrUnsupportedCompilerVersion,
	KindInvalidOptimizerRuns:       ErrInvalidOptimizerRuns,
	KindMissingPathRole:            ErrMissingPathRole,
	KindDuplicateNetwork:           ErrDuplicateNetwork,
	KindInvalidNetworkName:         ErrInvalidNetworkName,
	KindUnknownPlugin:              ErrUnknownPlugin,
	KindInvalidChainID:             ErrInvalidChainID,
	KindInvalidAddress:             ErrInvalidAddress,
	KindInvalidTimeout:             ErrInvalidTimeout,
	KindUnknownDefaultNetwork:      ErrUnknownDefaultNetwork,
	KindInvalidEVMVersion:          ErrInvalidEVMVersion,
	KindMissingCompiler:            ErrMissingCompiler,
	KindDecode:                     ErrDecode,
}

// Errors raised when a record is used, not when it is loaded.
var (
	ErrNetworkNotFound   = errors.New("network not found")
	ErrMissingCredential = errors.New("network has no signing credential")
)

// ConfigError identifies the first constraint a configuration violates.
// Value never carries secret material.
type ConfigError struct {
	Kind  ErrorKind
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s: %v", e.Field, sentinels[e.Kind])
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *ConfigError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func newError(kind ErrorKind, field, value string, err error) *ConfigError {
	return &ConfigError{Kind: kind, Field: field, Value: value, Err: err}
}

// KindOf returns the kind of a ConfigError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Kind, true
	}
	return "", false
}
