package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"parley-server/internal/domain/catalog"
)

// PayloadVersion is the current chat payload schema version. Stored payloads
// carry their version so the shape is checked explicitly on read instead of
// being cast and hoped for.
const PayloadVersion = 1

// ChatPayload is the single JSON document persisted per conversation:
// provider, model, resolved params, and the full ordered message sequence.
type ChatPayload struct {
	Version   int             `json:"version"`
	Provider  string          `json:"provider"`
	ModelName string          `json:"name"`
	Params    []catalog.Param `json:"params"`
	Messages  []Message       `json:"messages"`
}

// Validate checks the decoded payload's invariants.
func (p *ChatPayload) Validate() error {
	if p.Provider == "" {
		return fmt.Errorf("chat payload is missing provider")
	}
	if p.ModelName == "" {
		return fmt.Errorf("chat payload is missing model name")
	}
	for i, m := range p.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("chat payload message %d has invalid role %q", i, m.Role)
		}
		// A system prompt may only occupy the first position.
		if m.Role == RoleSystem && i > 0 {
			return fmt.Errorf("chat payload has a system message after the first position")
		}
	}
	return nil
}

// EncodePayload serializes a payload at the current schema version.
func EncodePayload(p ChatPayload) ([]byte, error) {
	p.Version = PayloadVersion
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode chat payload: %w", err)
	}
	return raw, nil
}

// DecodePayload parses and validates a stored payload. Numeric parameter
// values are decoded as json.Number so range params survive the round trip
// without float drift. A payload written by a newer schema version is a
// decode error, not a best-effort cast.
func DecodePayload(raw []byte) (*ChatPayload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("chat payload is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p ChatPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode chat payload: %w", err)
	}

	// Version 0 is the pre-versioning legacy shape, identical to v1.
	if p.Version > PayloadVersion {
		return nil, fmt.Errorf("unsupported chat payload version %d", p.Version)
	}
	if p.Version == 0 {
		p.Version = PayloadVersion
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
