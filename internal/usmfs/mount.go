//go:build linux
// +build linux

package usmfs

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/usmtool/usmtool/internal/usm"
)

// Mount mounts a parsed USM file's tracks at mountPoint. It blocks until
// the process receives SIGINT/SIGTERM or the server exits.
func Mount(mountPoint string, u *usm.Usm) error {
	return MountWithAllowOther(mountPoint, u, false)
}

// MountWithAllowOther mounts u's tracks at mountPoint, optionally enabling
// FUSE allow_other so other users/processes on the host can browse it.
func MountWithAllowOther(mountPoint string, u *usm.Usm, allowOther bool) error {
	root := &Root{Usm: u}

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      false,
			AllowOther: allowOther,
		},
	}
	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		log.Printf("usmfs: unmounting %s", mountPoint)
		_ = server.Unmount()
	}()

	server.Wait()
	stop()
	return nil
}

// MountBackground mounts u's tracks at mountPoint without blocking,
// returning an unmount function. ctx cancellation also unmounts.
func MountBackground(ctx context.Context, mountPoint string, u *usm.Usm, allowOther bool) (unmount func(), err error) {
	root := &Root{Usm: u}

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      false,
			AllowOther: allowOther,
		},
	}
	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = server.Unmount()
	}()

	return func() { _ = server.Unmount() }, nil
}
