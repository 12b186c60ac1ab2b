package project

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a serialization of the declared configuration document.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, toml or yaml)", s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer format of %s: no file extension", path)
	}
	return ParseFormat(ext)
}

// FormatFromContentType maps an HTTP media type to a format.
func FormatFromContentType(contentType string) (Format, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	switch mediaType {
	case "application/json":
		return FormatJSON, nil
	case "application/toml":
		return FormatTOML, nil
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// ContentType returns the media type used to serve f.
func (f Format) ContentType() string {
	switch f {
	case FormatTOML:
		return "application/toml"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}
