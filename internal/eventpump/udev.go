package eventpump

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// byteOrder is the host's native order for decoding kernel wire structs
// read straight out of /dev/dri/cardN and the netlink uevent socket; DRM
// and the kernel uevent format are both defined in terms of the running
// kernel's endianness, never network byte order.
var byteOrder = binary.NativeEndian

// OpenUdevMonitor binds a raw AF_NETLINK/NETLINK_KOBJECT_UEVENT socket and
// returns its fd. This talks directly to the kernel's uevent broadcast,
// bypassing libudev entirely: no enrichment (tags, ID_SEAT, symlinks) is
// available this way, which is why FindPrimaryGPU below re-derives what it
// needs from sysfs instead of relying on udev device properties.
func OpenUdevMonitor() (int, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return -1, fmt.Errorf("eventpump: socket(AF_NETLINK): %w", err)
	}
	sa := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // KOBJECT_UEVENT group 1: udev-style monitor broadcast.
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventpump: bind(netlink): %w", err)
	}
	return fd, nil
}

const udevReadBuf = 8192

// readUdevEvent reads one kernel uevent datagram and extracts the ACTION
// and DEVPATH fields. A raw kernel uevent looks like
// "change@/devices/pci0000:00/.../drm/card0\0ACTION=change\0DEVPATH=...\0
// SUBSYSTEM=drm\0..." — NUL-separated KEY=VALUE pairs after the leading
// "<action>@<devpath>" line.
func readUdevEvent(fd int) (action, devpath string, err error) {
	buf := make([]byte, udevReadBuf)
	n, _, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return "", "", err
	}
	fields := strings.Split(string(buf[:n]), "\x00")
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, "ACTION="); ok {
			action = v
		} else if v, ok := strings.CutPrefix(f, "DEVPATH="); ok {
			devpath = v
		} else if v, ok := strings.CutPrefix(f, "SUBSYSTEM="); ok {
			if v != "drm" {
				return "", "", nil
			}
		}
	}
	return action, devpath, nil
}

const sysfsDRMClass = "/sys/class/drm"

// FindPrimaryGPU enumerates /sys/class/drm/card[0-9]* nodes, restricts the
// candidate set to the given seat, and prefers the card whose parent PCI
// device reports boot_vga=1 — the boot-VGA/seat-scoped discovery rule of
// otd_udev_find_gpu, reimplemented over direct sysfs reads since this
// package talks to the kernel uevent socket rather than libudev and has no
// ID_SEAT device property to query. Seat scoping falls back to "seat0"
// (the only seat on a non-multi-seat system, and the only one libseat
// normally reports) by checking for an explicit seat override file udevd
// would otherwise expose as a udev property; its absence means "seat0".
func FindPrimaryGPU(seat string) (devicePath string, err error) {
	if seat == "" {
		seat = "seat0"
	}

	entries, err := os.ReadDir(sysfsDRMClass)
	if err != nil {
		return "", fmt.Errorf("eventpump: readdir %s: %w", sysfsDRMClass, err)
	}

	var cards []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") {
			continue
		}
		if strings.Contains(name, "-") {
			continue // card0-HDMI-A-1 is a connector node, not a GPU.
		}
		cards = append(cards, name)
	}
	sort.Strings(cards)

	var fallback string
	for _, card := range cards {
		sysPath := filepath.Join(sysfsDRMClass, card)
		devNode := filepath.Join("/dev/dri", card)

		if _, err := os.Stat(devNode); err != nil {
			continue
		}
		if s := cardSeat(sysPath); s != seat {
			continue
		}
		if fallback == "" {
			fallback = devNode
		}
		if isBootVGA(sysPath) {
			return devNode, nil
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("eventpump: no DRM card found for seat %q", seat)
	}
	return fallback, nil
}

// cardSeat reads the udev seat tag a card was assigned, if logind/udevd
// wrote one to the device's sysfs attributes. Absent any such file, every
// card belongs to seat0.
func cardSeat(sysPath string) string {
	data, err := os.ReadFile(filepath.Join(sysPath, "device", "seat"))
	if err != nil {
		return "seat0"
	}
	return strings.TrimSpace(string(data))
}

// isBootVGA walks up from the DRM class node to its parent PCI device and
// checks boot_vga, the same attribute otd_udev_find_gpu reads off the
// udev_device's PCI parent.
func isBootVGA(sysPath string) bool {
	real, err := filepath.EvalSymlinks(sysPath)
	if err != nil {
		return false
	}
	dir := filepath.Dir(real) // .../drm/card0 -> .../drm; the loop climbs on to the PCI device
	for i := 0; i < 8 && dir != "/" && dir != "."; i++ {
		data, err := os.ReadFile(filepath.Join(dir, "boot_vga"))
		if err == nil {
			return strings.TrimSpace(string(data)) == "1"
		}
		dir = filepath.Dir(dir)
	}
	return false
}
