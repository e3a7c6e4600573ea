package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram  = "ownc/program/v1"
	DomainRegistry = "ownc/registry/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies a program tree by content. Two programs with the
// same printed form hash identically, which is what lets the journal seed a
// re-run from an earlier converged registry.
func ProgramHash(p *Program) (string, error) {
	if p == nil {
		return "", fmt.Errorf("ProgramHash: nil program")
	}
	obj := map[string]any{
		"name":         p.Name,
		"tree":         Print(p),
		"tree_version": TreeVersion,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// RegistryHash identifies a set of signatures by their per-parameter modes.
// Names and foreign flags take part; types do not.
func RegistryHash(sigs map[string]CallableSignature) (string, error) {
	names := make([]string, 0, len(sigs))
	for n := range sigs {
		names = append(names, n)
	}
	sort.Strings(names)

	obj := make(map[string]any, len(sigs))
	for _, n := range names {
		sig := sigs[n]
		modes := make([]string, len(sig.Params))
		for i, m := range sig.Params {
			modes[i] = string(m)
		}
		obj[n] = map[string]any{
			"params":  modes,
			"foreign": sig.Foreign,
		}
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RegistryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRegistry, canonical), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramHash(p *Program) string {
	h, err := ProgramHash(p)
	if err != nil {
		panic(err)
	}
	return h
}
