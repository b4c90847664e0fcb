// Package device hands out target device names and bus addresses for the disks
// attached to one domain.
package device

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrOverflow is returned when more volumes are requested than there are
	// distinct device names, or an address leaves the bus range.
	ErrOverflow = errors.New("device allocation overflow")

	// ErrAddressConflict is returned when two disks would share a bus address.
	ErrAddressConflict = errors.New("device address conflict")
)

const (
	singleLetters = 25 // b..z, "a" belongs to the boot disk
	doubleLetters = 26 * 26

	// Capacity is the number of extra volumes one domain can carry.
	Capacity = singleLetters + doubleLetters

	bootSuffix  = "a"
	bootAddress = "0x0a"
	maxPCISlot  = 0x1f
)

// Suffix returns the n-th (0-based) device name suffix after the boot disk:
// b..z, then aa..zz.
func Suffix(n int) (string, error) {
	switch {
	case n < 0:
		return "", fmt.Errorf("negative device index %d", n)
	case n < singleLetters:
		return string(rune('b' + n)), nil
	case n < Capacity:
		n -= singleLetters
		return string([]rune{rune('a' + n/26), rune('a' + n%26)}), nil
	default:
		return "", fmt.Errorf("%w: device index %d exceeds %d names", ErrOverflow, n, Capacity)
	}
}

// Cursor walks the Suffix sequence. It is never rewound.
type Cursor struct {
	next int
}

func (c *Cursor) Next() (string, error) {
	s, err := Suffix(c.next)
	if err != nil {
		return "", err
	}
	c.next++
	return s, nil
}

// Used reports how many suffixes the cursor has handed out.
func (c *Cursor) Used() int {
	return c.next
}

type VolumeKind string

const (
	KindRAID VolumeKind = "raid"
	KindCeph VolumeKind = "ceph"
	KindDRBD VolumeKind = "drbd"
)

// Addressing selects how a disk address element is written.
type Addressing int

const (
	AddressingNone Addressing = iota
	AddressingPCI
	AddressingCCW
)

func (a Addressing) String() string {
	switch a {
	case AddressingPCI:
		return "pci"
	case AddressingCCW:
		return "ccw"
	default:
		return "none"
	}
}

// Slot is the placement of one disk.
type Slot struct {
	Dev     string
	Address string
}

// Allocator places the disks of a single domain. It is not safe for
// concurrent use and must not be shared between assemblies.
type Allocator struct {
	prefix     string
	addressing Addressing
	cursor     Cursor
	used       map[string]VolumeKind
}

// NewAllocator returns an allocator for virtio ("vd") targets when virtio is
// set, otherwise for emulated IDE ("sd") targets without addresses.
func NewAllocator(virtio bool, addressing Addressing) *Allocator {
	a := &Allocator{
		prefix:     "sd",
		addressing: AddressingNone,
		used:       map[string]VolumeKind{},
	}
	if virtio {
		a.prefix = "vd"
		a.addressing = addressing
	}
	return a
}

func (a *Allocator) Prefix() string {
	return a.prefix
}

// Boot returns the fixed slot of the primary boot disk.
func (a *Allocator) Boot() Slot {
	return Slot{
		Dev:     a.prefix + bootSuffix,
		Address: a.element(bootAddress),
	}
}

// Reserve fails if total further volumes cannot all receive distinct names.
// Call it before the first Next so that no partial output is produced.
func (a *Allocator) Reserve(total int) error {
	if a.cursor.Used()+total > Capacity {
		return fmt.Errorf("%w: %d volumes requested, %d available", ErrOverflow, total, Capacity-a.cursor.Used())
	}
	return nil
}

// Next allocates the slot for volume index (1-based) of the given kind.
func (a *Allocator) Next(kind VolumeKind, index int) (Slot, error) {
	value, err := kindAddress(kind, index)
	if err != nil {
		return Slot{}, err
	}

	if a.addressing != AddressingNone {
		if err := a.claim(kind, value); err != nil {
			return Slot{}, err
		}
	}

	suffix, err := a.cursor.Next()
	if err != nil {
		return Slot{}, err
	}

	return Slot{
		Dev:     a.prefix + suffix,
		Address: a.element(value),
	}, nil
}

func (a *Allocator) claim(kind VolumeKind, value string) error {
	n, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid %s address %s: %w", kind, value, err)
	}
	if n == 0x0a {
		return fmt.Errorf("%w: %s address %s is taken by the boot disk", ErrAddressConflict, kind, value)
	}
	if a.addressing == AddressingPCI && n > maxPCISlot {
		return fmt.Errorf("%w: %s address %s is beyond PCI slot %#x", ErrOverflow, kind, value, maxPCISlot)
	}
	if owner, taken := a.used[value]; taken {
		return fmt.Errorf("%w: %s address %s already used by a %s volume", ErrAddressConflict, kind, value, owner)
	}
	a.used[value] = kind
	return nil
}

func (a *Allocator) element(value string) string {
	switch a.addressing {
	case AddressingPCI:
		return fmt.Sprintf("<address type='pci' slot='%s'/>", value)
	case AddressingCCW:
		return fmt.Sprintf("<address type='ccw' cssid='0xfe' ssid='0x0' devno='%s'/>", value)
	default:
		return ""
	}
}

func kindAddress(kind VolumeKind, index int) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("%s volume index %d must be positive", kind, index)
	}

	switch kind {
	case KindRAID:
		return "0x1" + strconv.FormatInt(int64(index+9), 16), nil
	case KindCeph:
		return "0x1" + strconv.Itoa(index), nil
	case KindDRBD:
		return "0x1f", nil
	default:
		return "", fmt.Errorf("unknown volume kind %q", kind)
	}
}
