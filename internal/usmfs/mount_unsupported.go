//go:build !linux
// +build !linux

package usmfs

import (
	"context"
	"fmt"

	"github.com/usmtool/usmtool/internal/usm"
)

// Mount is unavailable on non-Linux builds because usmfs depends on go-fuse.
func Mount(mountPoint string, u *usm.Usm) error {
	return fmt.Errorf("usmfs mount is only supported on linux builds")
}

// MountWithAllowOther is unavailable on non-Linux builds because usmfs
// depends on go-fuse.
func MountWithAllowOther(mountPoint string, u *usm.Usm, allowOther bool) error {
	return fmt.Errorf("usmfs mount is only supported on linux builds")
}

// MountBackground is unavailable on non-Linux builds because usmfs depends
// on go-fuse.
func MountBackground(_ context.Context, mountPoint string, u *usm.Usm, allowOther bool) (func(), error) {
	return nil, fmt.Errorf("usmfs mount is only supported on linux builds")
}
