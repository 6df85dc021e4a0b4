// Package ident implements the dSID/dSUID tagged identifier: a 96- or
// 128-bit value constructed from one of four encodings (classic GID96
// class+serial, SGTIN96, UUIDv1 MAC-based, UUIDv5 name-in-namespace) and
// compared/serialised uniformly regardless of how it was built.
package ident

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"
)

// Variant tags the byte layout an Ident was constructed with. It governs
// both raw length (12 bytes for Classic96/SGTIN96, 16 for UUID) and the
// string encoding used by String/FromString.
type Variant uint8

const (
	Undefined Variant = iota
	Classic96
	SGTIN96
	UUID
)

// dsidManager is the fixed 28-bit manager number used by every Classic96 ID.
const dsidManager = 0x04175FE

// macClassTag marks a Classic96 objectClass whose value's top byte is 0xFF,
// selecting the MAC-address sub-encoding instead of a plain serial.
const macClassTag = 0xFF

// Ident is an immutable tagged identifier value. The zero value is the
// Undefined variant and compares equal only to itself.
type Ident struct {
	variant Variant
	raw     [16]byte // only the first Len() bytes are meaningful
}

// Len returns the number of meaningful bytes for the variant.
func (v Variant) Len() int {
	switch v {
	case Classic96, SGTIN96:
		return 12
	case UUID:
		return 16
	default:
		return 0
	}
}

// Variant reports how the identifier was constructed/classified.
func (i Ident) Variant() Variant { return i.variant }

// Bytes returns the raw meaningful bytes (a defensive copy).
func (i Ident) Bytes() []byte {
	b := make([]byte, i.variant.Len())
	copy(b, i.raw[:i.variant.Len()])
	return b
}

// IsValid reports whether the identifier has a defined variant.
func (i Ident) IsValid() bool { return i.variant != Undefined }

// Equal compares variant then bytes.
func (i Ident) Equal(o Ident) bool {
	if i.variant != o.variant {
		return false
	}
	n := i.variant.Len()
	return bytes.Equal(i.raw[:n], o.raw[:n])
}

// Less orders by variant then bytes, giving Ident a total order suitable
// for use as a sorted-map key or in deterministic iteration.
func (i Ident) Less(o Ident) bool {
	if i.variant != o.variant {
		return i.variant < o.variant
	}
	n := i.variant.Len()
	return bytes.Compare(i.raw[:n], o.raw[:n]) < 0
}

// ---------------------------------------------------------------------
// Classic96 construction
// ---------------------------------------------------------------------

// SetClassic builds the plain (non-MAC) Classic96 layout:
//
//	hh mm mm mm mc cc cc cd dd dd dd dd
//
// where hh=0x35 is the fixed tag byte, mm../m is the 28-bit manager number,
// cc../c is the 24-bit objectClass, and dd../d is the 36-bit serial.
// If objectClass's top byte is 0xFF, the MAC-address sub-encoding is used
// instead (see SetClassicMAC); serial's low 48 bits are treated as a MAC
// and its bits 48..51 as a sub-index, matching the reference bit layout.
func SetClassic(objectClass uint32, serial uint64) Ident {
	if (objectClass>>16)&0xFF == macClassTag {
		return SetClassicMAC(serial&0xFFFFFFFFFFFF, uint8((serial>>48)&0xF))
	}
	var raw [16]byte
	packClassicHeader(&raw, objectClass&0xFFFFFF)
	packClassicSerial(&raw, serial&0xFFFFFFFFF)
	return Ident{variant: Classic96, raw: raw}
}

// SetClassicMAC builds the MAC-address Classic96 variant directly: the
// 48-bit MAC address fills the low nibble of byte 5, all of byte 6, the
// high nibble of byte 7 and all of bytes 8..11, and the 4-bit sub-index
// the low nibble of byte 7, per the reference byte template
// "hh mm mm mm mc cM MM MX NN NN NN NN".
func SetClassicMAC(mac48 uint64, subIndex uint8) Ident {
	var raw [16]byte
	// objectClass top byte fixed to 0xFF; its remaining 16 bits are
	// overwritten by the MAC/sub-index packing below, so any value works.
	packClassicHeader(&raw, 0xFF0000)
	mac48 &= 0xFFFFFFFFFFFF
	subIndex &= 0xF
	raw[5] = (raw[5] & 0xF0) | byte((mac48>>44)&0xF)
	raw[6] = byte((mac48 >> 36) & 0xFF)
	raw[7] = byte(((mac48>>32)&0xF)<<4) | subIndex
	raw[8] = byte((mac48 >> 24) & 0xFF)
	raw[9] = byte((mac48 >> 16) & 0xFF)
	raw[10] = byte((mac48 >> 8) & 0xFF)
	raw[11] = byte(mac48 & 0xFF)
	return Ident{variant: Classic96, raw: raw}
}

func packClassicHeader(raw *[16]byte, objectClass uint32) {
	raw[0] = 0x35
	raw[1] = byte((dsidManager >> 20) & 0xFF)
	raw[2] = byte((dsidManager >> 12) & 0xFF)
	raw[3] = byte((dsidManager >> 4) & 0xFF)
	raw[4] = byte(dsidManager&0xF)<<4 | byte((objectClass>>20)&0xF)
	raw[5] = byte((objectClass >> 12) & 0xFF)
	raw[6] = byte((objectClass >> 4) & 0xFF)
	raw[7] = byte(objectClass&0xF) << 4
}

func packClassicSerial(raw *[16]byte, serial uint64) {
	raw[7] = (raw[7] & 0xF0) | byte((serial>>32)&0xF)
	raw[8] = byte((serial >> 24) & 0xFF)
	raw[9] = byte((serial >> 16) & 0xFF)
	raw[10] = byte((serial >> 8) & 0xFF)
	raw[11] = byte(serial & 0xFF)
}

// ObjectClass extracts the 24-bit objectClass field of a Classic96 Ident.
// Only meaningful when Variant() == Classic96.
func (i Ident) ObjectClass() uint32 {
	if i.variant != Classic96 {
		return 0
	}
	return uint32(i.raw[4]&0xF)<<20 | uint32(i.raw[5])<<12 | uint32(i.raw[6])<<4 | uint32(i.raw[7])>>4
}

// Serial extracts the 36-bit plain-encoding serial field. Meaningless (and
// not the MAC) when ObjectClass's top byte is 0xFF.
func (i Ident) Serial() uint64 {
	if i.variant != Classic96 {
		return 0
	}
	return uint64(i.raw[7]&0xF)<<32 | uint64(i.raw[8])<<24 | uint64(i.raw[9])<<16 | uint64(i.raw[10])<<8 | uint64(i.raw[11])
}

// ---------------------------------------------------------------------
// SGTIN96 construction
// ---------------------------------------------------------------------

// sgtinPartitionCompanyBits maps an EPC SGTIN-96 partition value (0..6) to the bit
// width of the combined company-prefix+item-reference field split point;
// company-prefix gets the high bits of the 44-bit companyItem value.
var sgtinPartitionCompanyBits = [7]uint{40, 37, 34, 30, 27, 24, 20}

// SetSgtin builds the SGTIN-96 layout: header(0x30) filter(3 bit, fixed to
// 1) partition(3 bit) companyPrefix+itemRef(44 bit) serial(38 bit).
// companyItem is the already-packed 44-bit company-prefix/item-reference
// value (DALI OEM-GTIN reads deliver exactly this form).
func SetSgtin(companyItem uint64, partition uint8, serial uint64) Ident {
	partition &= 0x7
	if partition > 6 {
		partition = 6
	}
	companyBits := sgtinPartitionCompanyBits[partition]
	_ = companyBits // width is informational; companyItem is stored packed
	companyItem &= (1 << 44) - 1
	serial &= (1 << 38) - 1

	var val uint64 // top 96 bits don't fit in uint64; build via two halves
	// High 52 bits: header(8) filter(3) partition(3) companyItem-high(38)
	// We instead build directly into bytes using bit offsets from MSB.
	var raw [16]byte
	bitw := newBitWriter(raw[:12])
	bitw.put(0x30, 8)
	bitw.put(1, 3) // filter value: "all others"
	bitw.put(uint64(partition), 3)
	bitw.put(companyItem, 44)
	bitw.put(serial, 38)
	_ = val
	return Ident{variant: SGTIN96, raw: raw}
}

// CompanyItem extracts the 44-bit packed company-prefix/item-reference
// field of an SGTIN96 Ident.
func (i Ident) CompanyItem() uint64 {
	if i.variant != SGTIN96 {
		return 0
	}
	br := newBitReader(i.raw[:12])
	br.skip(8 + 3 + 3)
	return br.get(44)
}

// SgtinSerial extracts the 38-bit serial field of an SGTIN96 Ident.
func (i Ident) SgtinSerial() uint64 {
	if i.variant != SGTIN96 {
		return 0
	}
	br := newBitReader(i.raw[:12])
	br.skip(8 + 3 + 3 + 44)
	return br.get(38)
}

// ---------------------------------------------------------------------
// UUID construction (v1 MAC-based, v5 name-in-namespace)
// ---------------------------------------------------------------------

// SetUUIDv1 builds a MAC-based UUIDv1 identifier using the given 48-bit
// MAC address as the node field; time/clock-seq fields are zero, since the
// core only needs a stable per-MAC identity, not wall-clock ordering.
func SetUUIDv1(mac48 uint64) Ident {
	var node [6]byte
	for k := 0; k < 6; k++ {
		node[5-k] = byte(mac48 >> (8 * k))
	}
	var raw [16]byte
	raw[6] = 0x10 // version 1, time_hi high nibble zero
	raw[8] = 0x80 // RFC4122 variant
	copy(raw[10:16], node[:])
	return Ident{variant: UUID, raw: raw}
}

// SetNameInNamespace builds a UUIDv5 identifier: SHA-1 over the namespace's
// 16 raw bytes followed by the UTF-8 name bytes, truncated to 16 bytes,
// with byte 6's high nibble forced to 0x5 and byte 8's top two bits forced
// to 0b10 (RFC 4122 version/variant).
func SetNameInNamespace(name string, namespace Ident) Ident {
	ns := namespace.Bytes()
	for len(ns) < 16 {
		ns = append(ns, 0)
	}
	u := uuid.NewSHA1(uuid.UUID(toArray16(ns)), []byte(name))
	var raw [16]byte
	copy(raw[:], u[:])
	return Ident{variant: UUID, raw: raw}
}

func toArray16(b []byte) [16]byte {
	var a [16]byte
	copy(a[:], b)
	return a
}

// HashSerial48 derives a stable 48-bit pseudo-serial from an arbitrary
// configuration key (a GPIO pin name, a console device key, a hue light
// id, …) for technologies with no hardware-assigned serial number. It is
// the 64-bit FNV-1a hash of key, xor-folded down to 48 bits — the same
// construction the reference implementation's static-device classes use
// ("hash.getHash48()") before adding their fixed 0x7 high-nibble tag.
// Whether that nibble is reserved or a placeholder is undocumented
// upstream; this package does not reproduce it; callers that need a
// distinguishing class tag encode it in objectClass instead.
func HashSerial48(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	v := h.Sum64()
	return (v >> 48) ^ (v & 0xFFFFFFFFFFFF)
}

// uuidv5Reference is a from-scratch derivation kept as a cross-check, so
// tests don't have to trust google/uuid's internals matching the RFC
// byte-for-byte (they do; this verifies it).
func uuidv5Reference(namespace [16]byte, name string) [16]byte {
	h := sha1.New()
	h.Write(namespace[:])
	h.Write([]byte(name))
	sum := h.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	out[6] = (out[6] & 0x0F) | 0x50
	out[8] = (out[8] & 0x3F) | 0x80
	return out
}

// ---------------------------------------------------------------------
// String encoding / parsing
// ---------------------------------------------------------------------

// String renders the identifier in its variant-appropriate form:
// uppercase 24-char hex for Classic96, dotted 8.8.8 hex groups for
// SGTIN96, dashed 8-4-4-4-12 lowercase hex for UUID.
func (i Ident) String() string {
	switch i.variant {
	case Classic96:
		return strings.ToUpper(hex.EncodeToString(i.raw[:12]))
	case SGTIN96:
		b := i.raw[:12]
		return fmt.Sprintf("%s.%s.%s",
			hex.EncodeToString(b[0:4]),
			hex.EncodeToString(b[4:8]),
			hex.EncodeToString(b[8:12]))
	case UUID:
		var u uuid.UUID
		copy(u[:], i.raw[:16])
		return u.String()
	default:
		return ""
	}
}

// FromString parses any of the three string forms. Malformed input (wrong
// hex/group count) is rejected with an error; it is never silently
// accepted as a partial or undefined-variant value.
func FromString(s string) (Ident, error) {
	switch {
	case len(s) == 24 && isHex(s):
		b, err := hex.DecodeString(s)
		if err != nil {
			return Ident{}, fmt.Errorf("ident: bad classic hex: %w", err)
		}
		var raw [16]byte
		copy(raw[:], b)
		return Ident{variant: Classic96, raw: raw}, nil

	case strings.Count(s, ".") == 2:
		parts := strings.Split(s, ".")
		if len(parts[0]) != 8 || len(parts[1]) != 8 || len(parts[2]) != 8 {
			return Ident{}, fmt.Errorf("ident: bad sgtin group lengths in %q", s)
		}
		var raw [16]byte
		for gi, p := range parts {
			b, err := hex.DecodeString(p)
			if err != nil {
				return Ident{}, fmt.Errorf("ident: bad sgtin hex: %w", err)
			}
			copy(raw[gi*4:gi*4+4], b)
		}
		return Ident{variant: SGTIN96, raw: raw}, nil

	case strings.Count(s, "-") == 4:
		u, err := uuid.Parse(s)
		if err != nil {
			return Ident{}, fmt.Errorf("ident: bad uuid: %w", err)
		}
		var raw [16]byte
		copy(raw[:], u[:])
		return Ident{variant: UUID, raw: raw}, nil

	default:
		return Ident{}, fmt.Errorf("ident: unrecognised format %q", s)
	}
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
