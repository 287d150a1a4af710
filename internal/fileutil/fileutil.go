// Package fileutil copies artifact files into the package directory.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"deliver/internal/digest"
	"deliver/internal/services"
)

// CopyFile streams src to dst and gives dst the permission bits of src.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return CopyFileMode(src, dst, info.Mode().Perm())
}

// CopyFileMode streams src to dst, setting the given file mode on dst
// regardless of the process umask.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Chmod(mode); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst like CopyFile, then re-reads dst and
// compares its SHA-256 and size with what was read from src. dst is removed
// on mismatch and the error carries services.ErrIntegrity.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	mode := srcInfo.Mode().Perm()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Chmod(mode); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return services.Wrap(services.ErrIntegrity, "copy", "verify", dst,
			fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written))
	}

	copied, err := digest.File(dst)
	if err != nil {
		_ = os.Remove(dst)
		return services.Wrap(services.ErrIntegrity, "copy", "verify", dst, err)
	}
	if expected := hex.EncodeToString(srcHasher.Sum(nil)); copied != expected {
		_ = os.Remove(dst)
		return services.Wrap(services.ErrIntegrity, "copy", "verify", dst,
			fmt.Errorf("copy hash mismatch: source %s, copied %s", expected, copied))
	}
	return nil
}
