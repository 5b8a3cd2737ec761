package records

import (
	"strings"

	"github.com/google/uuid"
)

// pidAlphabet is the base32 alphabet used for PIDs: lowercase, without the
// easily confused i, l and o.
const pidAlphabet = "0123456789abcdefghjkmnpqrstuvwxyz"

// NewPID mints a fresh persistent identifier of the form "xxxxx-xxxxx" from
// random UUID bytes.
func NewPID() string {
	raw := uuid.New()

	var b strings.Builder
	b.Grow(11)
	for i := 0; i < 10; i++ {
		if i == 5 {
			b.WriteByte('-')
		}
		b.WriteByte(pidAlphabet[int(raw[i])%len(pidAlphabet)])
	}
	return b.String()
}
