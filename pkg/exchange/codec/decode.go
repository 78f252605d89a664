package codec

import (
	"errors"
	"fmt"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// ErrInvalidPayload is returned, possibly wrapped with more specific
// context, for every structural validation failure (spec §4.1, §7).
var ErrInvalidPayload = errors.New("codec: invalid payload")

func invalid(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, v...))
}

// cursor reads sequentially from data, refusing to ever read past its
// end (spec §4.1: "every offset read must lie within the declared
// payload length").
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) u32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, invalid("truncated reading u32 at offset %d", c.pos)
	}
	v := order.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if c.remaining() < 2 {
		return 0, invalid("truncated reading u16 at offset %d", c.pos)
	}
	v := order.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, invalid("truncated reading %d bytes at offset %d", n, c.pos)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Decode validates data per spec §4.1 and, on success, returns the
// fully decoded payload. Any failure returns ErrInvalidPayload
// (wrapped with context) and the caller must not mutate any state as
// a result.
func Decode(data []byte) (*Payload, error) {
	c := &cursor{data: data}

	numNamespaces, err := c.u32()
	if err != nil {
		return nil, err
	}
	if numNamespaces > types.MaxNamespaces {
		return nil, invalid("num_namespaces %d exceeds max %d", numNamespaces, types.MaxNamespaces)
	}

	payload := &Payload{Namespaces: make([]DecodedNamespace, 0, numNamespaces)}
	seenNames := make(map[string]struct{}, numNamespaces)

	for i := uint32(0); i < numNamespaces; i++ {
		ns, err := decodeNamespace(c)
		if err != nil {
			return nil, err
		}
		if _, dup := seenNames[ns.Name]; dup {
			return nil, invalid("duplicate namespace %q in payload", ns.Name)
		}
		seenNames[ns.Name] = struct{}{}
		payload.Namespaces = append(payload.Namespaces, *ns)
	}

	if c.remaining() != 0 {
		return nil, invalid("trailing %d bytes after parsing declared payload", c.remaining())
	}

	return payload, nil
}

func decodeNamespace(c *cursor) (*DecodedNamespace, error) {
	nameField, err := c.bytes(types.NamespaceNameSize)
	if err != nil {
		return nil, err
	}
	name, err := terminatedName(nameField)
	if err != nil {
		return nil, err
	}

	numVinfos, err := c.u32()
	if err != nil {
		return nil, err
	}
	if numVinfos > types.MaxPartitions {
		return nil, invalid("namespace %q: num_vinfos %d exceeds max %d", name, numVinfos, types.MaxPartitions)
	}

	ns := &DecodedNamespace{Name: name, Vinfos: make([]DecodedVinfo, 0, numVinfos)}

	for i := uint32(0); i < numVinfos; i++ {
		v, err := decodeVinfo(c, name)
		if err != nil {
			return nil, err
		}
		ns.Vinfos = append(ns.Vinfos, *v)
	}

	return ns, nil
}

func decodeVinfo(c *cursor, nsName string) (*DecodedVinfo, error) {
	vinfoBytes, err := c.bytes(types.VinfoSize)
	if err != nil {
		return nil, err
	}
	var v types.Vinfo
	copy(v[:], vinfoBytes)

	numPids, err := c.u32()
	if err != nil {
		return nil, err
	}
	if numPids > types.MaxPartitions {
		return nil, invalid("namespace %q: num_pids %d exceeds max %d", nsName, numPids, types.MaxPartitions)
	}

	pids := make([]types.PartitionID, 0, numPids)
	for i := uint32(0); i < numPids; i++ {
		pid, err := c.u16()
		if err != nil {
			return nil, err
		}
		p := types.PartitionID(pid)
		if !p.Valid() {
			return nil, invalid("namespace %q: pid %d out of range [0,%d)", nsName, pid, types.MaxPartitions)
		}
		pids = append(pids, p)
	}

	return &DecodedVinfo{Vinfo: v, Pids: pids}, nil
}

// terminatedName requires a NUL byte within the fixed field and
// returns the string up to it.
func terminatedName(field []byte) (string, error) {
	for i, b := range field {
		if b == 0 {
			return string(field[:i]), nil
		}
	}
	return "", invalid("namespace name missing NUL terminator within %d bytes", len(field))
}

// Validate reports whether data is a structurally well-formed
// payload, per spec §4.1 and the property in §8.3-4. It is a thin
// wrapper over Decode for callers that only need the boolean result.
func Validate(data []byte) bool {
	_, err := Decode(data)
	return err == nil
}
