package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

// CodeTTL is how long email verification and password reset codes stay valid.
const CodeTTL = 10 * time.Minute

// OneTimeCode is a short numeric code mailed to a user.  Raw goes into the
// email; only Hash is persisted.
type OneTimeCode struct {
	Raw  string
	Hash string
	Exp  time.Time
}

// NewOneTimeCode returns a random 6-digit code that expires after CodeTTL.
func NewOneTimeCode() (OneTimeCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return OneTimeCode{}, err
	}
	raw := big.NewInt(0).Add(n, big.NewInt(100000)).String()
	return OneTimeCode{
		Raw:  raw,
		Hash: HashToken(raw),
		Exp:  time.Now().UTC().Add(CodeTTL),
	}, nil
}

// RandomIndex returns a uniformly random index in [0, n).
func RandomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
