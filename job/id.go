package job

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ID is the globally unique identifier of a job.
//
// It is 16 hex characters: the submitter's index in the high 8 and the
// submitter's IPv4 address, as a big-endian uint32, in the low 8.
type ID string

const idLen = 16

var ErrMalformedID = errors.New("malformed job ID")

// ErrNotOpen is returned by a worker asked to run a job it hasn't opened.
var ErrNotOpen = errors.New("job is not open")

// EncodeID builds the ID for the index'th job submitted from addr.
// Addresses that are not IPv4 encode as 0.0.0.0.
func EncodeID(index uint32, addr net.IP) ID {
	return ID(fmt.Sprintf("%08X%08X", index, addrToUint32(addr)))
}

// DecodeID splits an ID back into its index and source address.
func DecodeID(id ID) (uint32, net.IP, error) {
	if len(id) != idLen {
		return 0, nil, errors.Wrapf(ErrMalformedID, "%q has length %d", id, len(id))
	}
	index, err := strconv.ParseUint(string(id[:8]), 16, 32)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrMalformedID, "%q index", id)
	}
	addr, err := strconv.ParseUint(string(id[8:]), 16, 32)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrMalformedID, "%q address", id)
	}
	return uint32(index), uint32ToAddr(uint32(addr)), nil
}

// Index returns the submitter index embedded in the ID, or 0 if it is malformed.
func (id ID) Index() uint32 {
	index, _, err := DecodeID(id)
	if err != nil {
		return 0
	}
	return index
}

// Source returns the submitter address embedded in the ID, or nil if it is malformed.
func (id ID) Source() net.IP {
	_, addr, err := DecodeID(id)
	if err != nil {
		return nil
	}
	return addr
}

func (id ID) Valid() bool {
	_, _, err := DecodeID(id)
	return err == nil
}

// PackID shortens an ID relative to the address of the node reporting it.
//
// Octets the source address shares with relative are zeroed so a job
// submitted from a neighbouring host packs to a handful of characters:
//
//	relative  0A000107  (10.0.1.7)
//	source    0A000117  (10.0.1.23)
//	masked    00000010
//
// The packed form is "hex(index).hex(maskedAddress)".
func PackID(relative net.IP, id ID) (string, error) {
	index, addr, err := DecodeID(id)
	if err != nil {
		return "", err
	}
	masked := addrToUint32(addr) ^ addrToUint32(relative)
	return fmt.Sprintf("%X.%X", index, masked), nil
}

// UnpackID restores an ID packed by PackID against the same relative address.
func UnpackID(relative net.IP, packed string) (ID, error) {
	parts := strings.Split(packed, ".")
	if len(parts) != 2 {
		return "", errors.Wrapf(ErrMalformedID, "packed %q", packed)
	}
	index, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return "", errors.Wrapf(ErrMalformedID, "packed %q index", packed)
	}
	masked, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return "", errors.Wrapf(ErrMalformedID, "packed %q address", packed)
	}
	addr := uint32(masked) ^ addrToUint32(relative)
	return EncodeID(uint32(index), uint32ToAddr(addr)), nil
}

func addrToUint32(addr net.IP) uint32 {
	v4 := addr.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func uint32ToAddr(v uint32) net.IP {
	addr := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(addr, v)
	return addr
}
