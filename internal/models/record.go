// Package models defines the domain types for Ansuz.
package models

import (
	"fmt"
	"time"
)

// Identity is the public identity of a connected wallet: the lowercase hex
// encoding of its ed25519 public key.
type Identity string

// String returns the identity as a plain string.
func (id Identity) String() string { return string(id) }

// Short returns an abbreviated form for display ("1a2b…9f0e").
func (id Identity) Short() string {
	s := string(id)
	if len(s) <= 12 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// RecordAddress locates the shared record on the node.
type RecordAddress struct {
	ProgramID string `json:"program_id" yaml:"program_id"`
	Key       string `json:"key" yaml:"key"`
}

// String implements fmt.Stringer.
func (a RecordAddress) String() string {
	return fmt.Sprintf("%s/%s", a.ProgramID, a.Key)
}

// Contribution is one submitted word. Contributions are append-only.
type Contribution struct {
	ID        string    `json:"id,omitempty"`
	Author    Identity  `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Record is the shared list of contributions in append order.
type Record struct {
	Address       RecordAddress  `json:"address"`
	Owner         Identity       `json:"owner"`
	Contributions []Contribution `json:"contributions"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// WordCloudEntry is one weighted display unit of the word cloud.
type WordCloudEntry struct {
	Value  string `json:"value"`
	Weight int    `json:"weight"`
}

// ContributorList holds distinct identities in first-appearance order.
type ContributorList []Identity
