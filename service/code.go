// Package service holds the sub-services a host can mint and the registry
// that maps service codes to them.
package service

import "fmt"

// Code identifies a sub-service. The values are part of the wire contract.
type Code int

const (
	Compute        Code = 0
	SecurityCenter Code = 1
)

var codeNames = map[Code]string{
	Compute:        "Compute",
	SecurityCenter: "SecurityCenter",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Codes lists every compiled-in code in ascending order.
func Codes() []Code {
	return []Code{Compute, SecurityCenter}
}
