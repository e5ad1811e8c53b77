package vendors

import (
	"os"
	"path/filepath"
	"strings"
)

var dmiPath = "/sys/class/dmi/id"

func dmiField(name string) string {
	b, err := os.ReadFile(filepath.Join(dmiPath, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// SysVendor returns the platform vendor string from SMBIOS.
func SysVendor() string { return dmiField("sys_vendor") }

// ProductName returns the platform product string from SMBIOS.
func ProductName() string { return dmiField("product_name") }
