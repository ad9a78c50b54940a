package cryptox

import (
	"encoding/base64"
	"encoding/json"
)

// NonceSize is the AES-GCM nonce length used for every field (96 bits).
const NonceSize = 12

// Envelope is the at-rest form of one encrypted field value.
type Envelope struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Timestamp  int64  `json:"timestamp"`
}

// Map returns the envelope in the shape it takes inside a decoded JSON
// document, so it can be stored as a field value of a record.
func (e Envelope) Map() map[string]any {
	return map[string]any{
		"ciphertext": base64.StdEncoding.EncodeToString(e.Ciphertext),
		"nonce":      base64.StdEncoding.EncodeToString(e.Nonce),
		"timestamp":  float64(e.Timestamp),
	}
}

// AsEnvelope recognizes an envelope in any of the forms it can take: the
// struct itself, a pointer to it, or a decoded JSON object with exactly the
// ciphertext, nonce and timestamp keys. Anything else is not an envelope.
func AsEnvelope(v any) (Envelope, bool) {
	switch x := v.(type) {
	case Envelope:
		return x, true
	case *Envelope:
		if x == nil {
			return Envelope{}, false
		}
		return *x, true
	case map[string]any:
		return envelopeFromMap(x)
	default:
		return Envelope{}, false
	}
}

func envelopeFromMap(m map[string]any) (Envelope, bool) {
	if len(m) != 3 {
		return Envelope{}, false
	}
	ct, ok := m["ciphertext"].(string)
	if !ok {
		return Envelope{}, false
	}
	nonce, ok := m["nonce"].(string)
	if !ok {
		return Envelope{}, false
	}
	var ts int64
	switch t := m["timestamp"].(type) {
	case float64:
		ts = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return Envelope{}, false
		}
		ts = n
	case int64:
		ts = t
	case int:
		ts = int64(t)
	default:
		return Envelope{}, false
	}

	ctBytes, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		return Envelope{}, false
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return Envelope{}, false
	}
	return Envelope{Ciphertext: ctBytes, Nonce: nonceBytes, Timestamp: ts}, true
}
