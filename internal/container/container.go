// Package container reads and writes the layout member of a thin report
// container. A container is a plain zip archive; the layout member is
// UTF-16LE text carrying the report's JSON document.
package container

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// LayoutMember is the zip member holding the report layout.
	LayoutMember = "Report/Layout"

	// securityBindings holds the container signature. It is dropped on
	// write: a mutated layout invalidates it, and the host refuses to
	// open a container whose signature no longer matches.
	securityBindings = "SecurityBindings"
)

var ErrNoLayout = errors.New("container has no Report/Layout member")

// ReadLayout opens a container and decodes its layout member to a UTF-8
// string. A leading BOM, when present, is consumed.
func ReadLayout(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening container: %w", err)
	}
	defer func() { _ = zr.Close() }()

	member := findMember(&zr.Reader, LayoutMember)
	if member == nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoLayout)
	}

	rc, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("reading layout member: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("reading layout member: %w", err)
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("decoding layout text: %w", err)
	}
	return string(decoded), nil
}

// WriteLayout atomically replaces the layout member. The rewritten
// container is assembled beside the original as "{base} Temp{ext}",
// members copied in archive order with DEFLATE, the layout re-encoded as
// BOM-less UTF-16LE and the SecurityBindings member dropped. Only after
// a clean close does the temp file replace the original; any failure
// removes the temp and leaves the original untouched.
func WriteLayout(path, layout string) (err error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, _, err := transform.Bytes(enc, []byte(layout))
	if err != nil {
		return fmt.Errorf("encoding layout text: %w", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening container: %w", err)
	}
	defer func() { _ = zr.Close() }()

	tmp := tempPath(path)
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp container: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(out)
	for _, member := range zr.File {
		if member.Name == securityBindings {
			continue
		}
		w, cerr := zw.CreateHeader(&zip.FileHeader{Name: member.Name, Method: zip.Deflate})
		if cerr != nil {
			err = fmt.Errorf("writing member %s: %w", member.Name, cerr)
			return err
		}
		if member.Name == LayoutMember {
			if _, werr := w.Write(encoded); werr != nil {
				err = fmt.Errorf("writing layout member: %w", werr)
				return err
			}
			continue
		}
		if err = copyMember(w, member); err != nil {
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalizing temp container: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing temp container: %w", err)
	}
	if err = zr.Close(); err != nil {
		return fmt.Errorf("closing container: %w", err)
	}

	if err = os.Remove(path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing container: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing container: %w", err)
	}
	return nil
}

// ListMembers returns the archive's member names in order.
func ListMembers(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer func() { _ = zr.Close() }()

	names := make([]string, len(zr.File))
	for i, member := range zr.File {
		names[i] = member.Name
	}
	return names, nil
}

func findMember(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func copyMember(w io.Writer, member *zip.File) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("copying member %s: %w", member.Name, err)
	}
	defer func() { _ = rc.Close() }()
	if _, err := io.Copy(w, rc); err != nil { // #nosec G110 -- members come from the user's own container
		return fmt.Errorf("copying member %s: %w", member.Name, err)
	}
	return nil
}

// tempPath derives the sibling temp filename "{base} Temp{ext}".
func tempPath(path string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(dir, base+" Temp"+ext)
}
