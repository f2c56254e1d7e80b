package j1939

import "github.com/kstaniek/j1939d/internal/can"

// FromCANFrame decodes a raw gateway can.Frame into a j1939.Frame, masking
// off the EFF/RTR/ERR flag bits SocketCAN packs into the upper word of
// CANID. Every J1939 frame is an extended (29-bit) frame; callers that care
// should check the EFF flag before calling this (see IsJ1939Frame).
func FromCANFrame(f can.Frame) Frame {
	rawID := f.CANID & can.CAN_EFF_MASK
	n := int(f.Len)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return Decode(rawID, append([]byte(nil), f.Data[:n]...))
}

// ToCANFrame encodes a j1939.Frame into the gateway's wire-level can.Frame,
// setting the EFF flag since address-claim traffic is always 29-bit.
func ToCANFrame(f Frame) (can.Frame, error) {
	rawID, payload, err := Encode(f)
	if err != nil {
		return can.Frame{}, err
	}
	var out can.Frame
	out.CANID = rawID | can.CAN_EFF_FLAG
	out.Len = uint8(len(payload))
	copy(out.Data[:], payload)
	return out, nil
}

// IsJ1939Frame reports whether raw carries the extended-frame flag J1939
// requires; non-extended traffic on the same bus is outside this layer's
// scope and should be dropped by the caller before reaching FromCANFrame.
func IsJ1939Frame(f can.Frame) bool {
	return f.CANID&can.CAN_EFF_FLAG != 0
}
