package dml

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical serializes a descriptor (or any JSON-encodable value)
// into a deterministic byte form: object keys sorted by UTF-16 code units,
// strings NFC-normalized, no HTML escaping, numbers rendered exactly as
// encoding/json produced them. Two structurally equal descriptors always
// canonicalize to identical bytes, which is what golden tests and
// fingerprinting rely on.
func MarshalCanonical(v any) ([]byte, error) {
	// Round-trip through encoding/json so struct tags and omitempty apply,
	// then re-render the generic tree deterministically.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fingerprint returns the hex SHA-256 of the descriptor's canonical form.
// Used to correlate log lines with the exact request that produced them.
func Fingerprint(d Descriptor) (string, error) {
	data, err := MarshalCanonical(d)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		return writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		buf.WriteByte('{')
		keys := sortedKeysUTF16(val)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML
// escaping. < > & stay literal.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	out := tmp.Bytes()
	// json.Encoder appends a trailing newline.
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}

// sortedKeysUTF16 returns map keys sorted by UTF-16 code units, the key
// ordering canonical JSON specifies (it differs from UTF-8 byte order for
// characters outside the BMP).
func sortedKeysUTF16(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})
	return keys
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
