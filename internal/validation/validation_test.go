package validation

import (
	"testing"
)

func TestValidateNetworkName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "local", false},
		{"with hyphen", "test-network", false},
		{"single char", "a", false},
		{"digits", "polygon-80001", false},
		{"empty", "", true},
		{"uppercase", "Mainnet", true},
		{"underscore", "test_network", true},
		{"leading hyphen", "-local", true},
		{"trailing hyphen", "local-", true},
		{"consecutive hyphens", "test--network", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNetworkName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNetworkName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "my-project", false},
		{"valid min length", "ab", false},
		{"too short", "a", true},
		{"starts with number", "1project", true},
		{"contains uppercase", "MyProject", true},
		{"consecutive hyphens", "my--project", true},
		{"path traversal", "my..project", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"loopback", "http://localhost:8545", false},
		{"https", "https://matic-mumbai.chainstacklabs.com", false},
		{"websocket", "wss://mainnet.example.org/ws/v3/key", false},
		{"ip with port", "http://127.0.0.1:8545", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"no scheme", "localhost:8545", true},
		{"ftp scheme", "ftp://example.com", true},
		{"missing host", "http://", true},
		{"bad port", "http://localhost:99999", true},
		{"garbage", "::not a url::", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpointURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"declared default", "0.8.16", false},
		{"with v prefix", "v0.8.16", false},
		{"first 0.4 with json", "0.4.11", false},
		{"last 0.5", "0.5.17", false},
		{"last 0.7", "0.7.6", false},
		{"latest 0.8", "0.8.28", false},
		{"before standard json", "0.4.10", true},
		{"past last 0.7", "0.7.7", true},
		{"unknown line", "0.9.0", true},
		{"major one", "1.0.0", true},
		{"nightly", "0.8.16-nightly.2022.8.8", true},
		{"build metadata", "0.8.16+commit.07a7930e", true},
		{"missing patch", "0.8", true},
		{"empty", "", true},
		{"garbage", "latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCompilerVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSupportedCompilerVersions(t *testing.T) {
	versions := SupportedCompilerVersions()

	if versions[0] != "0.4.11" {
		t.Errorf("first supported version = %q, want 0.4.11", versions[0])
	}
	if got := ResolveLatest(versions); got != "0.8.28" {
		t.Errorf("latest supported version = %q, want 0.8.28", got)
	}
	for _, v := range versions {
		if err := ValidateCompilerVersion(v); err != nil {
			t.Errorf("listed version %q does not validate: %v", v, err)
		}
	}
}

func TestValidateEVMVersion(t *testing.T) {
	for _, v := range []string{"paris", "shanghai", "london", "tangerineWhistle"} {
		if err := ValidateEVMVersion(v); err != nil {
			t.Errorf("ValidateEVMVersion(%q) error = %v", v, err)
		}
	}
	for _, v := range []string{"", "Paris", "merge"} {
		if err := ValidateEVMVersion(v); err == nil {
			t.Errorf("ValidateEVMVersion(%q) expected error", v)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0.8.16", "0.8.16"},
		{"v0.8.16", "0.8.16"},
		{" v0.8.16 ", "0.8.16"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeVersion(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2   string
		expected int
	}{
		{"0.8.16", "0.8.16", 0},
		{"0.8.9", "0.8.16", -1},
		{"v0.8.20", "0.7.6", 1},
	}

	for _, tt := range tests {
		t.Run(tt.v1+"_"+tt.v2, func(t *testing.T) {
			got := CompareVersions(tt.v1, tt.v2)
			if got != tt.expected {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.expected)
			}
		})
	}
}

func TestResolveLatest(t *testing.T) {
	if got := ResolveLatest(nil); got != "" {
		t.Errorf("ResolveLatest(nil) = %q, want empty", got)
	}
	if got := ResolveLatest([]string{"0.8.9", "0.8.16", "0.7.6"}); got != "0.8.16" {
		t.Errorf("ResolveLatest() = %q, want 0.8.16", got)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0x1234567890abcdef1234567890abcdef12345678", false},
		{"valid checksum", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", false},
		{"too short", "0x1234", true},
		{"missing prefix", "001234567890abcdef1234567890abcdef12345678", true},
		{"non-hex", "0x1234567890abcdef1234567890abcdef1234567g", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChainID(t *testing.T) {
	tests := []struct {
		chainID int64
		wantErr bool
	}{
		{1, false},
		{31337, false},
		{80001, false},
		{0, true},
		{-1, true},
	}

	for _, tt := range tests {
		err := ValidateChainID(tt.chainID)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateChainID(%d) error = %v, wantErr %v", tt.chainID, err, tt.wantErr)
		}
	}
}
