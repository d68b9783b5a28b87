// Package snowflake generates unique 64-bit broadcast identifiers.
//
// An identifier packs, from the most significant bit: seconds since Epoch,
// a random shard, the generating machine's ID and a sequence number.
package snowflake

import (
	"math/rand"
	"sync"
	"time"
)

const (
	timestampBits      = 30                 // seconds since Epoch
	shardIDBits        = 4                  // 16 different shards
	machineIDBits      = 12                 // 4096 machines
	sequenceNumBits    = 18                 // 262 144 ids per second
	timestampBitsShift = 64 - timestampBits // 34

	maxShard       = uint64(1 << shardIDBits)
	MaxMachineID   = uint64(1 << machineIDBits)
	maxSequenceNum = uint64(1 << sequenceNumBits)

	bitMaskTimestamp   = uint64((1<<timestampBits)-1) << timestampBitsShift
	bitMaskShardID     = uint64((1<<shardIDBits)-1) << timestampBits
	bitMaskMachineID   = uint64((1<<machineIDBits)-1) << sequenceNumBits
	bitMaskSequenceNum = uint64((1 << sequenceNumBits) - 1)
)

// Epoch is the start of the timestamp field.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Snowflake is a generator of broadcast IDs. It is safe for concurrent use.
type Snowflake struct {
	mu        sync.Mutex
	machineID uint64
	seq       uint64
	lastT     uint64 // timestamp of the first id in the current sequence window
	firstSeq  uint64 // sequence number at the start of the window
	now       func() time.Time
}

// New returns a generator for the given machine ID. If id is 0 or not below
// MaxMachineID, a random machine ID in [1, MaxMachineID) is used instead.
func New(id uint64) *Snowflake {
	if id == 0 || id >= MaxMachineID {
		id = uint64(rand.Int63n(int64(MaxMachineID-1))) + 1
	}
	return &Snowflake{machineID: id, now: time.Now}
}

// MachineID returns the machine ID embedded in the generated IDs.
func (s *Snowflake) MachineID() uint64 {
	return s.machineID
}

// NewID returns a new broadcast ID. If the sequence numbers of the current
// second are used up, NewID waits for the next second.
func (s *Snowflake) NewID() uint64 {
	s.mu.Lock()
	var timestamp, seq uint64
	for {
		timestamp = uint64(s.now().Sub(Epoch).Seconds())
		seq = (s.seq + 1) % maxSequenceNum
		if timestamp > s.lastT {
			s.lastT, s.firstSeq = timestamp, seq
			break
		}
		if seq != s.firstSeq {
			break
		}
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		s.mu.Lock()
	}
	s.seq = seq
	s.mu.Unlock()

	t := (timestamp << timestampBitsShift) & bitMaskTimestamp
	shard := (uint64(rand.Int63n(int64(maxShard))) << timestampBits) & bitMaskShardID
	m := (s.machineID << sequenceNumBits) & bitMaskMachineID
	return t | shard | m | (seq & bitMaskSequenceNum)
}

// Decode splits a broadcast ID into its fields.
func Decode(id uint64) (timestamp uint32, shardID uint16, machineID uint16, seq uint32) {
	t := (id & bitMaskTimestamp) >> timestampBitsShift
	shard := (id & bitMaskShardID) >> timestampBits
	m := (id & bitMaskMachineID) >> sequenceNumBits
	n := id & bitMaskSequenceNum
	return uint32(t), uint16(shard), uint16(m), uint32(n)
}
