// Package ua defines the value-level vocabulary shared by the address space,
// the data sources and the generation engine.
package ua

import "fmt"

// StatusCode reports the outcome of an operation on a node. It is a value,
// not an error: a bad status is a normal result that callers inspect.
type StatusCode uint32

// The status codes used by the test-data server. The numeric values follow
// the OPC UA encoding so that the top two bits carry the severity.
const (
	StatusGood                     StatusCode = 0x00000000
	StatusUncertainLastUsableValue StatusCode = 0x40900000
	StatusBadUserAccessDenied      StatusCode = 0x801F0000
	StatusBadNodeIDUnknown         StatusCode = 0x80340000
	StatusBadTypeMismatch          StatusCode = 0x80740000
	StatusBadOutOfService          StatusCode = 0x808D0000
	StatusBadNoData                StatusCode = 0x809B0000
)

// Aliases for the names used throughout the engine.
const (
	StatusServiceUnavailable = StatusBadOutOfService
	StatusAccessDenied       = StatusBadUserAccessDenied
)

const severityMask StatusCode = 0xC0000000

var statusNames = map[StatusCode]string{
	StatusGood:                     "Good",
	StatusUncertainLastUsableValue: "UncertainLastUsableValue",
	StatusBadUserAccessDenied:      "BadUserAccessDenied",
	StatusBadNodeIDUnknown:         "BadNodeIdUnknown",
	StatusBadTypeMismatch:          "BadTypeMismatch",
	StatusBadOutOfService:          "BadOutOfService",
	StatusBadNoData:                "BadNoData",
}

// IsGood returns true if the severity of the code is good.
func (c StatusCode) IsGood() bool {
	return c&severityMask == 0
}

// IsUncertain returns true if the severity of the code is uncertain.
func (c StatusCode) IsUncertain() bool {
	return c&severityMask == 0x40000000
}

// IsBad returns true if the severity of the code is bad.
func (c StatusCode) IsBad() bool {
	return c&0x80000000 != 0
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}

	return fmt.Sprintf("StatusCode(0x%08X)", uint32(c))
}
