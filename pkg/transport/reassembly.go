// Segment reassembly. The Assembler is the only stateful component of the
// transport layer: a bounded table of in-progress assemblies keyed by
// (src, seqZero). Timeout and cancellation policy is owned by the session
// layer above; the assembler only exposes insert, query and evict.
//
// Calls touching different keys are independent; calls touching the same
// key must be serialized by the caller (single-writer-per-key), since a
// segment insert is not atomic across calls.

package transport

import (
	"github.com/kelindar/bitmap"
	"github.com/pion/logging"
)

// DefaultMaxAssemblies bounds the assembly table when the config does not
// say otherwise.
const DefaultMaxAssemblies = 16

// Assembled is a fully reassembled upper transport PDU. For access
// messages Data is ciphertext plus TransMIC, still to be decrypted with
// DecryptAccess; for control messages it is the plaintext parameter block.
type Assembled struct {
	Src     uint16
	SeqZero uint16
	Control bool

	// Access fields (Control == false).
	AKF   bool
	AID   byte
	SZMIC bool

	// Control field (Control == true).
	Opcode uint8

	Data []byte
}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	// MaxAssemblies bounds the number of concurrent in-progress
	// assemblies. Zero means DefaultMaxAssemblies.
	MaxAssemblies int

	// LoggerFactory is the factory for creating loggers.
	// If nil, no logging is performed.
	LoggerFactory logging.LoggerFactory
}

// Assembler collects segments until a transmission is complete.
type Assembler struct {
	max     int
	entries map[assemblyKey]*assembly
	log     logging.LeveledLogger
}

type assemblyKey struct {
	src     uint16
	seqZero uint16
}

type assembly struct {
	control  bool
	akf      bool
	aid      byte
	szmic    bool
	opcode   uint8
	segN     uint8
	segSize  int
	received bitmap.Bitmap
	count    int
	parts    [][]byte
}

// NewAssembler creates an empty assembler.
func NewAssembler(config AssemblerConfig) *Assembler {
	max := config.MaxAssemblies
	if max <= 0 {
		max = DefaultMaxAssemblies
	}
	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("assembler")
	}
	return &Assembler{
		max:     max,
		entries: make(map[assemblyKey]*assembly),
		log:     log,
	}
}

// Add inserts a segment received from src. It returns the assembled upper
// transport PDU once every index 0..SegN has been seen, and
// ErrIncompleteAssembly while segments are still missing. Segments that
// contradict an in-progress assembly (different SegN, AKF/AID, SZMIC or
// opcode for the same key) yield ErrInconsistentSegmentation; duplicates
// are ignored. Completed entries are removed from the table.
func (a *Assembler) Add(src uint16, pdu PDU) (*Assembled, error) {
	var (
		entry *assembly
		key   assemblyKey
		segO  uint8
		data  []byte
	)

	switch seg := pdu.(type) {
	case SegmentedAccess:
		key = assemblyKey{src: src, seqZero: seg.SeqZero}
		entry = a.entry(key, &assembly{
			akf:     seg.AKF,
			aid:     seg.AID,
			szmic:   seg.SZMIC,
			segN:    seg.SegN,
			segSize: AccessSegmentSize,
		})
		if entry == nil {
			return nil, ErrAssemblyLimit
		}
		if entry.control || entry.segN != seg.SegN ||
			entry.akf != seg.AKF || entry.aid != seg.AID || entry.szmic != seg.SZMIC {
			return nil, ErrInconsistentSegmentation
		}
		segO, data = seg.SegO, seg.Data

	case SegmentedControl:
		key = assemblyKey{src: src, seqZero: seg.SeqZero}
		entry = a.entry(key, &assembly{
			control: true,
			opcode:  seg.Opcode,
			segN:    seg.SegN,
			segSize: ControlSegmentSize,
		})
		if entry == nil {
			return nil, ErrAssemblyLimit
		}
		if !entry.control || entry.segN != seg.SegN || entry.opcode != seg.Opcode {
			return nil, ErrInconsistentSegmentation
		}
		segO, data = seg.SegO, seg.Data

	default:
		return nil, ErrNotSegmented
	}

	if segO > entry.segN {
		return nil, ErrInconsistentSegmentation
	}
	// Every segment except the last is exactly segSize long.
	if segO < entry.segN && len(data) != entry.segSize {
		return nil, ErrInconsistentSegmentation
	}

	if !entry.received.Contains(uint32(segO)) {
		entry.received.Set(uint32(segO))
		entry.parts[segO] = data
		entry.count++
		a.tracef("segment %d/%d for %04x/%03x", segO, entry.segN, key.src, key.seqZero)
	}

	if entry.count <= int(entry.segN) {
		return nil, ErrIncompleteAssembly
	}

	delete(a.entries, key)
	size := 0
	for _, part := range entry.parts {
		size += len(part)
	}
	joined := make([]byte, 0, size)
	for _, part := range entry.parts {
		joined = append(joined, part...)
	}
	a.tracef("assembly %04x/%03x complete, %d bytes", key.src, key.seqZero, size)

	return &Assembled{
		Src:     src,
		SeqZero: key.seqZero,
		Control: entry.control,
		AKF:     entry.akf,
		AID:     entry.aid,
		SZMIC:   entry.szmic,
		Opcode:  entry.opcode,
		Data:    joined,
	}, nil
}

// BlockAck reports which segments of the assembly keyed by (src, seqZero)
// have been received, for building a SegmentAckMessage. ok is false when
// no such assembly is in progress.
func (a *Assembler) BlockAck(src uint16, seqZero uint16) (received bitmap.Bitmap, segN uint8, ok bool) {
	entry, ok := a.entries[assemblyKey{src: src, seqZero: seqZero & seqZeroMask}]
	if !ok {
		return nil, 0, false
	}
	return entry.received.Clone(nil), entry.segN, true
}

// Evict drops the in-progress assembly keyed by (src, seqZero), if any.
// The session layer calls this on timeout or superseding traffic.
func (a *Assembler) Evict(src uint16, seqZero uint16) bool {
	key := assemblyKey{src: src, seqZero: seqZero & seqZeroMask}
	if _, ok := a.entries[key]; !ok {
		return false
	}
	delete(a.entries, key)
	a.tracef("evicted assembly %04x/%03x", key.src, key.seqZero)
	return true
}

// Pending returns the number of in-progress assemblies.
func (a *Assembler) Pending() int {
	return len(a.entries)
}

// entry returns the assembly for key, creating it from the template on
// first sight. nil means the table is full.
func (a *Assembler) entry(key assemblyKey, template *assembly) *assembly {
	if entry, ok := a.entries[key]; ok {
		return entry
	}
	if len(a.entries) >= a.max {
		return nil
	}
	template.parts = make([][]byte, int(template.segN)+1)
	a.entries[key] = template
	return template
}

func (a *Assembler) tracef(format string, args ...interface{}) {
	if a.log != nil {
		a.log.Tracef(format, args...)
	}
}
