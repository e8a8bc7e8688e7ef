package form

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	refMu   sync.Mutex
	refMono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	refMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// newRef returns a ULID used as the row handle in rendered markup. Refs are
// monotonic within a process, so two rows never share one.
func newRef() string {
	refMu.Lock()
	defer refMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), refMono)
	if err != nil {
		panic(err)
	}
	return id.String()
}
