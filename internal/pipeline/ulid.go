package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job ids are ULIDs: 48 bits of unix milliseconds followed by 80 random
// bits, written as 26 Crockford base32 characters so they sort by creation.

var (
	ulidMu  sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

func generateULID() string {
	return newULID(time.Now())
}

func newULID(now time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	ts := uint64(now.UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(ts>>32))
	binary.BigEndian.PutUint32(b[2:6], uint32(ts))
	rand.Read(b[8:])
	// Ids minted within the same millisecond stay ordered.
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encode(b)
}

// encode writes 128 bits as 26 five-bit groups. The first group carries
// only the top three bits.
func encode(b [16]byte) string {
	bit := func(k int) byte {
		if k < 0 {
			return 0
		}
		return (b[k/8] >> (7 - k%8)) & 1
	}
	var out [26]byte
	for i := range out {
		var v byte
		for k := i*5 - 2; k < i*5+3; k++ {
			v = v<<1 | bit(k)
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
