package hostnet

import (
	"os"
	"testing"
	"unsafe"
)

func TestIfReqMatchesKernelLayout(t *testing.T) {
	if unsafe.Sizeof(ifReq{}) != 40 {
		t.Fatalf("ifReq size = %d, want 40 (IFNAMSIZ(16) + flags(2) + pad(22))", unsafe.Sizeof(ifReq{}))
	}
}

// TestNewTapDeviceRequiresPrivilege exercises the real device path
// when the test runner has CAP_NET_ADMIN and /dev/net/tun, and is
// skipped otherwise rather than failing in unprivileged environments.
func TestNewTapDeviceRequiresPrivilege(t *testing.T) {
	if _, err := os.Stat("/dev/net/tun"); err != nil {
		t.Skip("no /dev/net/tun on this host")
	}

	tap, err := NewTapDevice("rodnix-test0")
	if err != nil {
		t.Skipf("opening tap device requires CAP_NET_ADMIN: %v", err)
	}
	defer tap.Close()

	if tap.Name() != "rodnix-test0" {
		t.Fatalf("Name() = %q, want rodnix-test0", tap.Name())
	}
}
