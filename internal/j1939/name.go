package j1939

import "encoding/binary"

// Name is the 64-bit globally unique identifier a controller application
// claims an address on behalf of. Field layout (MSB to LSB):
//
//	arbitrary-address-capable (1) | industry-group (3) | vehicle-system-instance (4) |
//	vehicle-system (7) | reserved (1) | function (8) | function-instance (5) |
//	ecu-instance (3) | manufacturer-code (11) | identity-number (21)
//
// Names compare as plain unsigned 64-bit integers; the numerically lower
// NAME wins contention.
type Name uint64

const (
	nameArbitraryAddrCapableMask = 0x8000000000000000
	nameIndustryGroupMask        = 0x7000000000000000
	nameIndustryGroupShift       = 60
	nameVehicleSysInstMask       = 0x0F00000000000000
	nameVehicleSysInstShift      = 56
	nameVehicleSystemMask        = 0x00FE000000000000
	nameVehicleSystemShift       = 49
	nameFunctionMask             = 0x0000FF0000000000
	nameFunctionShift            = 40
	nameFunctionInstMask         = 0x000000F800000000
	nameFunctionInstShift        = 35
	nameECUInstanceMask          = 0x0000000700000000
	nameECUInstanceShift         = 32
	nameManufacturerCodeMask     = 0x00000000FFE00000
	nameManufacturerCodeShift    = 21
	nameIdentityNumberMask       = 0x00000000001FFFFF
)

// IsArbitraryAddressCapable reports whether the CA may relocate to another
// address in the dynamic range on preemption (NAME bit 63).
func (n Name) IsArbitraryAddressCapable() bool {
	return uint64(n)&nameArbitraryAddrCapableMask != 0
}

func (n Name) IndustryGroup() uint8 {
	return uint8((uint64(n) & nameIndustryGroupMask) >> nameIndustryGroupShift)
}

func (n Name) VehicleSystemInstance() uint8 {
	return uint8((uint64(n) & nameVehicleSysInstMask) >> nameVehicleSysInstShift)
}

func (n Name) VehicleSystem() uint8 {
	return uint8((uint64(n) & nameVehicleSystemMask) >> nameVehicleSystemShift)
}

func (n Name) Function() uint8 {
	return uint8((uint64(n) & nameFunctionMask) >> nameFunctionShift)
}

func (n Name) FunctionInstance() uint8 {
	return uint8((uint64(n) & nameFunctionInstMask) >> nameFunctionInstShift)
}

func (n Name) ECUInstance() uint8 {
	return uint8((uint64(n) & nameECUInstanceMask) >> nameECUInstanceShift)
}

func (n Name) ManufacturerCode() uint16 {
	return uint16((uint64(n) & nameManufacturerCodeMask) >> nameManufacturerCodeShift)
}

func (n Name) IdentityNumber() uint32 {
	return uint32(uint64(n) & nameIdentityNumberMask)
}

// Less reports whether n has contention priority over other (numerically
// smaller NAME wins per J1939-81).
func (n Name) Less(other Name) bool { return n < other }

// Bytes returns the little-endian 8-byte wire encoding used as the payload
// of an address-claim frame.
func (n Name) Bytes() [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	return b
}

// NameFromBytes decodes the little-endian 8-byte payload of an address-claim
// frame into a Name.
func NameFromBytes(b []byte) Name {
	var buf [8]byte
	copy(buf[:], b)
	return Name(binary.LittleEndian.Uint64(buf[:]))
}
