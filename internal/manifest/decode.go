package manifest

import (
	"encoding/json"
	"fmt"
	"io"
)

// File is the JSON document accepted by the CLI and the HTTP API.
type File struct {
	BookID string        `json:"bookId"`
	Title  string        `json:"title,omitempty"`
	Assets []AssetRecord `json:"assets"`
}

// Decode reads a manifest document. A bare JSON array of assets is accepted too.
func Decode(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var f File
	if len(raw) > 0 && firstNonSpace(raw) == '[' {
		if err := json.Unmarshal(raw, &f.Assets); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		return &f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &f, nil
}

// Encode writes a manifest document as indented JSON.
func Encode(w io.Writer, f *File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
