package j1939

import "fmt"

// Address-related constants (J1939-81).
const (
	NoAddr         uint8 = 0xFF // J1939_NO_ADDR: global destination
	IdleAddr       uint8 = 0xFE // J1939_IDLE_ADDR: no address yet / cannot claim
	MaxUnicastAddr uint8 = 0xFD // J1939_MAX_UNICAST_ADDR
)

// PDU format / PGN constants for the two frame kinds the claim layer cares about.
const (
	PFAddressClaim uint8 = 0xEE
	PSAddressClaim uint8 = 0xFF

	PFRequest uint8 = 0xEA

	// PGNAddressClaim is PGN 60928 (0x00EE00), little-endian low-24 as carried
	// in an address-request payload.
	PGNAddressClaim uint32 = 0x00EE00

	defaultClaimPriority   uint8 = 6
	defaultRequestPriority uint8 = 6
)

// Frame is a decoded J1939 message: the 29-bit extended CAN identifier split
// into its component fields, plus payload.
type Frame struct {
	Priority uint8 // 3 bits, 0 = highest
	DataPage uint8 // reserved + data-page, 2 bits
	PF       uint8 // PDU format
	PS       uint8 // PDU specific (destination addr for PDU1, group extension for PDU2)
	SA       uint8 // source address
	Data     []byte
}

// IsPDU2 reports whether PF indicates a broadcast PDU2 message (PF >= 0xF0),
// in which case PS extends the PGN rather than naming a destination.
func (f Frame) IsPDU2() bool { return f.PF >= 0xF0 }

// Destination returns the frame's destination address: PS for PDU1 frames,
// NoAddr (broadcast) for PDU2 frames.
func (f Frame) Destination() uint8 {
	if f.IsPDU2() {
		return NoAddr
	}
	return f.PS
}

// PGN reconstructs the 18-bit parameter group number encoded by reserved/DP/PF/PS.
func (f Frame) PGN() uint32 {
	pgn := uint32(f.DataPage&0x3)<<16 | uint32(f.PF)<<8
	if f.IsPDU2() {
		pgn |= uint32(f.PS)
	}
	return pgn
}

// Decode splits a 29-bit extended CAN identifier and its payload into a Frame.
// Bit layout: priority[28:26], reserved+data-page[25:24], PF[23:16], PS[15:8], SA[7:0].
func Decode(rawID uint32, payload []byte) Frame {
	return Frame{
		Priority: uint8((rawID >> 26) & 0x7),
		DataPage: uint8((rawID >> 24) & 0x3),
		PF:       uint8((rawID >> 16) & 0xFF),
		PS:       uint8((rawID >> 8) & 0xFF),
		SA:       uint8(rawID & 0xFF),
		Data:     payload,
	}
}

// Encode packs a Frame back into a 29-bit extended CAN identifier and payload.
// Returns an error if Priority is outside the representable 0-7 range.
func Encode(f Frame) (uint32, []byte, error) {
	if err := validatePriority(f.Priority); err != nil {
		return 0, nil, err
	}
	id := uint32(f.Priority)<<26 | uint32(f.DataPage&0x3)<<24 | uint32(f.PF)<<16 | uint32(f.PS)<<8 | uint32(f.SA)
	return id, f.Data, nil
}

// MakeAddressClaim constructs an address-claim frame for name claiming (or
// defending, or cannot-claiming) source address sa. sa == IdleAddr signals
// "cannot claim."
func MakeAddressClaim(name Name, sa uint8) Frame {
	b := name.Bytes()
	return Frame{
		Priority: defaultClaimPriority,
		PF:       PFAddressClaim,
		PS:       PSAddressClaim,
		SA:       sa,
		Data:     append([]byte(nil), b[:]...),
	}
}

// MakeAddressRequest constructs an address-request frame for the address-claim
// PGN, targeting destination (NoAddr for a global request).
func MakeAddressRequest(requester uint8, destination uint8) Frame {
	payload := make([]byte, 3)
	payload[0] = byte(PGNAddressClaim & 0xFF)
	payload[1] = byte(PGNAddressClaim >> 8)
	payload[2] = byte(PGNAddressClaim >> 16)
	return Frame{
		Priority: defaultRequestPriority,
		PF:       PFRequest,
		PS:       destination,
		SA:       requester,
		Data:     payload,
	}
}

// IsAddressClaim reports whether f is a well-formed address-claim frame
// (PF == PFAddressClaim, PS == PSAddressClaim, 8-byte NAME payload).
func IsAddressClaim(f Frame) bool {
	return f.PF == PFAddressClaim && f.PS == PSAddressClaim && len(f.Data) == 8
}

// IsAddressRequest reports whether f is a well-formed address-request frame
// targeting the address-claim PGN (PF == PFRequest, 3-byte little-endian PGN).
func IsAddressRequest(f Frame) bool {
	if f.PF != PFRequest || len(f.Data) != 3 {
		return false
	}
	pgn := uint32(f.Data[0]) | uint32(f.Data[1])<<8 | uint32(f.Data[2])<<16
	return pgn == PGNAddressClaim
}

// ClaimedName extracts the claimant NAME from a validated address-claim frame.
func ClaimedName(f Frame) Name { return NameFromBytes(f.Data) }

// validatePriority rejects priorities outside the 3-bit range the 29-bit
// identifier can represent.
func validatePriority(priority uint8) error {
	if priority > 7 {
		return fmt.Errorf("j1939: priority %d out of range [0,7]", priority)
	}
	return nil
}
