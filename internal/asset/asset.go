// Package asset models ledger asset references and resolves caller supplied
// asset descriptions into them.
package asset

import (
	"strings"

	"github.com/stellar/go/strkey"

	"OpenMCP-Stellar/internal/errors"
)

// Horizon asset type names.
const (
	TypeNative      = "native"
	TypeAlphanum4   = "credit_alphanum4"
	TypeAlphanum12  = "credit_alphanum12"
	typeIssued      = "issued"
	maxCodeLength   = 12
	shortCodeLength = 4
)

// Asset is either the native asset or an issued asset identified by code and
// issuer. The zero value is the native asset.
type Asset struct {
	Code   string
	Issuer string
}

// Native is the ledger's native asset.
var Native = Asset{}

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool { return a == Native }

// Equal compares code and issuer.
func (a Asset) Equal(other Asset) bool { return a == other }

// Type returns the Horizon asset_type string.
func (a Asset) Type() string {
	switch {
	case a.IsNative():
		return TypeNative
	case len(a.Code) <= shortCodeLength:
		return TypeAlphanum4
	default:
		return TypeAlphanum12
	}
}

// String returns "native" or "CODE:ISSUER".
func (a Asset) String() string {
	if a.IsNative() {
		return TypeNative
	}
	return a.Code + ":" + a.Issuer
}

// Spec is the loosely typed asset description accepted from callers.
type Spec struct {
	Type   string `json:"type,omitempty"`
	Code   string `json:"code,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}

// Resolve turns a Spec into an Asset. It performs no I/O.
func Resolve(spec Spec) (Asset, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Type))
	code := strings.TrimSpace(spec.Code)
	issuer := strings.TrimSpace(spec.Issuer)

	if kind == "" {
		switch {
		case issuer == "" && (code == "" || strings.EqualFold(code, "XLM") || strings.EqualFold(code, TypeNative)):
			kind = TypeNative
		default:
			kind = typeIssued
		}
	}

	switch kind {
	case TypeNative:
		return Native, nil
	case typeIssued, TypeAlphanum4, TypeAlphanum12:
		return NewIssued(code, issuer)
	default:
		return Asset{}, errors.New(errors.CodeInvalidAsset, "unknown asset type "+spec.Type)
	}
}

// NewIssued validates and builds an issued asset.
func NewIssued(code, issuer string) (Asset, error) {
	if code == "" || issuer == "" {
		return Asset{}, errors.New(errors.CodeInvalidAsset, "issued asset requires code and issuer")
	}
	if len(code) > maxCodeLength || !isAlphanumeric(code) {
		return Asset{}, errors.New(errors.CodeInvalidAsset, "asset code must be 1-12 alphanumeric characters",
			errors.WithMetadata("code", code))
	}
	if !strkey.IsValidEd25519PublicKey(issuer) {
		return Asset{}, errors.New(errors.CodeInvalidAsset, "asset issuer is not a valid account id",
			errors.WithMetadata("issuer", issuer))
	}
	return Asset{Code: code, Issuer: issuer}, nil
}

// ParseCanonical parses the String form of an asset.
func ParseCanonical(s string) (Asset, error) {
	if strings.EqualFold(s, TypeNative) {
		return Native, nil
	}
	code, issuer, ok := strings.Cut(s, ":")
	if !ok {
		return Asset{}, errors.New(errors.CodeInvalidAsset, "expected CODE:ISSUER, got "+s)
	}
	return NewIssued(code, issuer)
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
