package accept

import (
	"strings"

	"relayd.dev/pkg/event"
)

// IPAllowlist accepts a connection only if its remote address has one of
// the configured prefixes. An empty allowlist accepts every connection,
// matching the teacher's "whitelist unset means unrestricted" convention
// in handle-websocket.go.
type IPAllowlist struct {
	Prefixes []string
}

var _ Policy = (*IPAllowlist)(nil)

// CheckConn rejects remotes that match no configured prefix.
func (a *IPAllowlist) CheckConn(info ConnInfo) error {
	if len(a.Prefixes) == 0 {
		return nil
	}
	for _, p := range a.Prefixes {
		if strings.HasPrefix(info.RemoteAddr, p) {
			return nil
		}
	}
	return Reject("connection from %s is not in the IP allowlist", info.RemoteAddr)
}

// CheckEvent imposes no per-event restriction.
func (a *IPAllowlist) CheckEvent(ConnInfo, *event.E) error { return nil }
