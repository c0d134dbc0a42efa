package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDerivationPath(t *testing.T) {
	tests := []struct {
		input  string
		output DerivationPath
		err    error
	}{
		// Plain absolute derivation paths
		{"m/44'/0'/0'/0", DerivationPath{hdkeychain.HardenedKeyStart + 44, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, 0}, nil},
		{"m/45'/0/0", DerivationPath{hdkeychain.HardenedKeyStart + 45, 0, 0}, nil},
		{"m/2147483647/0/5", DerivationPath{2147483647, 0, 5}, nil},
		{"m/0/1", DerivationPath{0, 1}, nil},

		// Hexadecimal components
		{"m/0x2c'/0x00'/0x00'/0x00", DerivationPath{hdkeychain.HardenedKeyStart + 44, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, 0}, nil},

		// Relative derivation paths
		{"44'/0'/0/0", DerivationPath{hdkeychain.HardenedKeyStart + 44, hdkeychain.HardenedKeyStart, 0, 0}, nil},
		{"0/0", DerivationPath{0, 0}, nil},

		// Invalid derivation paths
		{"", nil, ErrNullDerivationPath},
		{"m", nil, ErrMalformedDerivationPath},
		{"m/", nil, ErrMalformedDerivationPath},
		{"/44'/0'/0'/0", nil, ErrMalformedDerivationPath},
		{"m/2147483648'", nil, nil}, // overflows 32 bit integer, dynamic error
		{"m/-1'", nil, nil},         // negative component, dynamic error
		{"0", nil, ErrMalformedDerivationPath},
	}
	for _, tt := range tests {
		path, err := ParseDerivationPath(tt.input)
		if err != nil {
			if tt.err != nil {
				assert.Equal(t, tt.err, err)
			}
		}
		assert.Equal(t, tt.output, path)
	}
}

func TestDerivationPathString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"m/2147483647/0/0", "m/2147483647/0/0"},
		{"0/12", "m/0/12"},
		{"m/44'/0'/0'/1", "m/44'/0'/0'/1"},
	}
	for _, tt := range tests {
		path, err := ParseDerivationPath(tt.input)
		require.NoError(t, err)
		require.Equal(t, tt.expected, path.String())
	}
}

func TestDerivationPathIsHardened(t *testing.T) {
	hardened, err := ParseDerivationPath("m/45'/0/0")
	require.NoError(t, err)
	require.True(t, hardened.IsHardened())

	relative, err := ParseDerivationPath("m/2147483647/1/4")
	require.NoError(t, err)
	require.False(t, relative.IsHardened())
}
