package persona

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Canonical returns the canonical serialization of a persona document: the
// JSON encoding after a round trip through generic values, which normalises
// numeric representation and yields sorted object keys. Two documents that
// are equal as JSON values always canonicalise to identical bytes.
func Canonical(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// ContentHash computes the hex digest over the canonical serialization. The
// digest detects out-of-band tampering with stored documents; every
// in-process write keeps document and hash consistent.
func ContentHash(doc Document) (string, error) {
	canonical, err := Canonical(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
