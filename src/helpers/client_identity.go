package helpers

import (
	"net"
	"strings"
)

const (
	fallbackIP  = "127.0.0.1"
	fallbackMAC = "00-00-00-00-00-00"
)

// ClientIdentity carries the network identity the broker expects on every
// request header.
type ClientIdentity struct {
	LocalIP    string
	PublicIP   string
	MACAddress string
}

// -----------------------------------------------------------------------------

// DetectClientIdentity fills blanks from the first active non-loopback
// interface. Configured values always win.
func DetectClientIdentity(localIP, publicIP, mac string) ClientIdentity {
	id := ClientIdentity{LocalIP: localIP, PublicIP: publicIP, MACAddress: mac}

	if id.LocalIP == "" || id.MACAddress == "" {
		ip, hw := firstInterface()
		if id.LocalIP == "" {
			id.LocalIP = ip
		}
		if id.MACAddress == "" {
			id.MACAddress = hw
		}
	}

	if id.LocalIP == "" {
		id.LocalIP = fallbackIP
	}
	if id.PublicIP == "" {
		id.PublicIP = id.LocalIP
	}
	if id.MACAddress == "" {
		id.MACAddress = fallbackMAC
	}
	return id
}

// -----------------------------------------------------------------------------

func firstInterface() (string, string) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			return ipNet.IP.String(), FormatMAC(iface.HardwareAddr)
		}
	}
	return "", ""
}

// -----------------------------------------------------------------------------

// FormatMAC renders a hardware address the way the broker expects (dash separated, upper case).
func FormatMAC(hw net.HardwareAddr) string {
	if len(hw) == 0 {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(hw.String(), ":", "-"))
}
