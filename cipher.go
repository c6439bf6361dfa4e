package sigma

import (
	"crypto/rc4"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// maxSecretLen is the longest secret that still fits the 14 byte padded
// plaintext the firmware expects.
const maxSecretLen = 13

// Obfuscate encrypts secret against the gen_input token served by the login
// forms. It returns the hex encoded ciphertext and the decimal length of the
// raw ciphertext, which the panel wants in a separate form field.
//
// The padding length is random, so repeated calls usually differ.
func Obfuscate(secret, token string) (string, string, error) {
	return obfuscate(secret, token, rand.IntN(7)+1)
}

func obfuscate(secret, token string, num int) (string, string, error) {
	if token == "" {
		return "", "", errors.New("empty token")
	}
	if len(secret) > maxSecretLen {
		return "", "", fmt.Errorf("%w: %d > %d", ErrSecretTooLong, len(secret), maxSecretLen)
	}

	c, err := rc4.NewCipher([]byte(token))
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}

	plain := make([]byte, 0, 16)
	plain = append(plain, clampSlice(token, 1, 1+num)...)
	plain = append(plain, secret...)
	if n := 14 - num - len(secret); n > 0 {
		plain = append(plain, clampSlice(token, num, num+n)...)
	}
	plain = strconv.AppendInt(plain, int64(num), 10)
	plain = strconv.AppendInt(plain, int64(len(secret)), 10)

	out := make([]byte, len(plain))
	c.XORKeyStream(out, plain)

	return hex.EncodeToString(out), strconv.Itoa(len(out)), nil
}

// clampSlice returns s[from:to] with out of range bounds clamped.
func clampSlice(s string, from, to int) string {
	to = min(to, len(s))
	if from >= to {
		return ""
	}
	return s[from:to]
}
