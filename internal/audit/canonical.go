package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halcyon-health/halcyon/internal/crypto"
)

// canonicalVersion pins the serialization layout. Bump only with a migration
// plan for previously stored hashes.
const canonicalVersion = "v1"

// canonicalBytes renders every hashed field of an entry in a fixed order so
// the digest is reproducible across processes and implementations. Fields are
// length-prefixed to rule out ambiguity from embedded separators; Details is
// canonical JSON (sorted keys, per encoding/json map behavior); the timestamp
// is UTC RFC3339 with nanoseconds.
func canonicalBytes(e Entry) ([]byte, error) {
	details := "{}"
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("audit: canonicalize details: %w", err)
		}
		details = string(raw)
	}
	prev := "null"
	if e.PrevHash != nil {
		prev = *e.PrevHash
	}

	var b strings.Builder
	writeField := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
		b.WriteByte('|')
	}
	writeField(canonicalVersion)
	writeField(e.ID)
	writeField(e.Chain)
	writeField(strconv.FormatInt(e.Seq, 10))
	writeField(e.At.UTC().Format(time.RFC3339Nano))
	writeField(e.ActorID)
	writeField(e.EventType)
	writeField(e.Action)
	writeField(e.ResourceType)
	writeField(e.ResourceID)
	writeField(details)
	writeField(prev)
	return []byte(b.String()), nil
}

// ComputeHash returns the canonical SHA-256 digest of the entry, excluding
// EntryHash itself.
func ComputeHash(e Entry) (string, error) {
	data, err := canonicalBytes(e)
	if err != nil {
		return "", err
	}
	return crypto.HashHex(data), nil
}
