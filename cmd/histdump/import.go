package main

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/therootcompany/xz"
)

// cmdImport decompresses a .tar.xz bundle of pack pairs and writes each
// member into dir. Members are expected to be flat .histpack/.histidx
// files; any path component (including "..") is rejected rather than
// followed, since a bundle may come from an untrusted peer.
func cmdImport(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: histdump import <bundle.tar.xz> <dir>")
	}
	bundlePath, dir := args[0], args[1]

	f, err := os.Open(bundlePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xr, err := xz.NewReader(f, xz.DefaultDictMax)
	if err != nil {
		return fmt.Errorf("decompressing %s: %w", bundlePath, err)
	}

	tr := tar.NewReader(xr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	imported := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", bundlePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := hdr.Name
		if name != filepath.Base(name) || name == "." || name == ".." {
			return fmt.Errorf("refusing to import member with path component: %q", hdr.Name)
		}
		if !strings.HasSuffix(name, ".histpack") && !strings.HasSuffix(name, ".histidx") {
			continue
		}

		dst := filepath.Join(dir, name)
		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		imported++
	}

	fmt.Printf("imported %d file(s) into %s\n", imported, dir)
	return nil
}
