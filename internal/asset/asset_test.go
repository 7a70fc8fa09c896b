package asset

import (
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/errors"
)

var issuer = keypair.MustRandom().Address()

func TestResolveNativeIsSingleValue(t *testing.T) {
	a, err := Resolve(Spec{Type: "native"})
	require.NoError(t, err)
	b, err := Resolve(Spec{Code: "XLM"})
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.True(t, a.Equal(Native))
	require.Equal(t, "native", a.Type())
}

func TestResolveIssuedRequiresIssuer(t *testing.T) {
	_, err := Resolve(Spec{Type: "issued", Code: "USDC"})
	require.Equal(t, errors.CodeInvalidAsset, errors.CodeOf(err))

	_, err = Resolve(Spec{Type: "issued", Issuer: issuer})
	require.Equal(t, errors.CodeInvalidAsset, errors.CodeOf(err))
}

func TestResolveIssued(t *testing.T) {
	usdc, err := Resolve(Spec{Type: "issued", Code: "USDC", Issuer: issuer})
	require.NoError(t, err)
	require.Equal(t, TypeAlphanum4, usdc.Type())
	require.Equal(t, "USDC:"+issuer, usdc.String())
	require.False(t, usdc.Equal(Native))

	long, err := Resolve(Spec{Code: "LONGTOKEN", Issuer: issuer})
	require.NoError(t, err)
	require.Equal(t, TypeAlphanum12, long.Type())

	// same code as native shorthand but with an issuer is still an issued asset
	xlm, err := Resolve(Spec{Code: "XLM", Issuer: issuer})
	require.NoError(t, err)
	require.False(t, xlm.Equal(Native))
}

func TestResolveRejectsMalformed(t *testing.T) {
	cases := []Spec{
		{Type: "issued", Code: "TOOLONGASSETCODE", Issuer: issuer},
		{Type: "issued", Code: "US-D", Issuer: issuer},
		{Type: "issued", Code: "USD", Issuer: "GNOTANACCOUNT"},
		{Type: "pool", Code: "USD", Issuer: issuer},
	}
	for _, spec := range cases {
		_, err := Resolve(spec)
		require.Equal(t, errors.CodeInvalidAsset, errors.CodeOf(err), "spec %+v", spec)
	}
}

func TestParseCanonicalRoundTrip(t *testing.T) {
	usdc, err := NewIssued("USDC", issuer)
	require.NoError(t, err)

	parsed, err := ParseCanonical(usdc.String())
	require.NoError(t, err)
	require.Equal(t, usdc, parsed)

	native, err := ParseCanonical("native")
	require.NoError(t, err)
	require.True(t, native.IsNative())

	_, err = ParseCanonical("USDC")
	require.Error(t, err)
}

func TestNativeIsTheZeroValueOnly(t *testing.T) {
	require.True(t, Native.IsNative())
	require.True(t, Asset{}.IsNative())

	codeOnly := Asset{Code: "USDC"}
	require.False(t, codeOnly.IsNative())
	require.False(t, codeOnly.Equal(Native))
	require.Equal(t, TypeAlphanum4, codeOnly.Type())
}
