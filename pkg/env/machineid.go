package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// FallbackID is used when the machine ID is unavailable.
const FallbackID = "softuart"

// MachineID retrieves the ID identifying the machine, hashed so it can be
// published.
func MachineID() string {
	id, err := machineid.ProtectedID(FallbackID)
	if err != nil {
		glog.Warningf("machine ID unavailable: %v", err)
		return FallbackID
	}
	return id[:12]
}
