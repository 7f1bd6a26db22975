package model

import "time"

// SubjectBinding is the only record the Gate keeps for a subject: the hash
// of each verified off-chain attribute value, never the value itself. It is
// the record `forget` tombstones.
type SubjectBinding struct {
	Subject         string
	AttributeHashes map[string]string // attribute name -> C1 hash of its off-chain value
	BoundAt         time.Time
	Forgotten       bool
}

// HasAttribute reports whether hash has been bound for name and, when
// requiredHash is non-empty, that it matches.
func (b *SubjectBinding) HasAttribute(name, requiredHash string) bool {
	if b == nil || b.Forgotten {
		return false
	}
	hash, ok := b.AttributeHashes[name]
	if !ok {
		return false
	}
	if requiredHash == "" {
		return true
	}
	return hash == requiredHash
}
