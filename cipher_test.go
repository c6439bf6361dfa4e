package sigma

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObfuscate(t *testing.T) {
	for _, tt := range []struct {
		secret, token string
		num           int
		plain         string
		hex           string
	}{
		{"test", "abcdefghijklmnop", 3, "bcdtestdefghij34", "cea327a9d7358b7f17815894c15f3fc6"},
		{"1234", "1234567890123456", 7, "2345678123489074", "1283a78412d2f4b821f22bdcb1c4e8cd"},
		{"password12345", "abcdefghijklmnop", 7, "bcdefghpassword12345713", "cea327b8d421976b13944c8bc74768c3c51985b1327846"},
		{"pw", "ab", 5, "bpw52", "4c0caf4627"},
	} {
		t.Run(tt.secret, func(t *testing.T) {
			enc, length, err := obfuscate(tt.secret, tt.token, tt.num)
			require.NoError(t, err)
			require.Equal(t, tt.hex, enc)
			require.Equal(t, strconv.Itoa(len(tt.plain)), length)

			plain, err := reveal(enc, tt.token)
			require.NoError(t, err)
			require.Equal(t, tt.plain, plain)
		})
	}

	t.Run("random padding", func(t *testing.T) {
		seen := map[string]bool{}
		for range 100 {
			enc, length, err := Obfuscate("secret", loginToken)
			require.NoError(t, err)
			n, err := strconv.Atoi(length)
			require.NoError(t, err)
			require.Len(t, enc, 2*n)
			seen[enc] = true
		}
		require.Greater(t, len(seen), 1)
	})

	t.Run("too long", func(t *testing.T) {
		_, _, err := Obfuscate("12345678901234", loginToken)
		require.ErrorIs(t, err, ErrSecretTooLong)
	})

	t.Run("empty token", func(t *testing.T) {
		_, _, err := Obfuscate("secret", "")
		require.Error(t, err)
	})
}
