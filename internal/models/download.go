// Package models downloads and installs Vosk model directories.
package models

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model describes a downloadable Vosk model archive.
type Model struct {
	Name        string // registry key
	Dir         string // directory the archive unpacks to
	URL         string
	Description string
}

const voskBaseURL = "https://alphacephei.com/vosk/models/"

var registry = map[string]Model{
	"small-en-us": {
		Name:        "small-en-us",
		Dir:         "vosk-model-small-en-us-0.15",
		URL:         voskBaseURL + "vosk-model-small-en-us-0.15.zip",
		Description: "English speech model (~40 MB)",
	},
	"spk": {
		Name:        "spk",
		Dir:         "vosk-model-spk-0.4",
		URL:         voskBaseURL + "vosk-model-spk-0.4.zip",
		Description: "Speaker identification model (~13 MB)",
	},
}

// Known returns the registered models sorted by name.
func Known() []Model {
	out := make([]Model, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the registered model with the given name.
func Lookup(name string) (Model, bool) {
	m, ok := registry[name]
	return m, ok
}

// Download fetches the named model archive and unpacks it into modelsDir.
// It shows download progress on out. An already-present model is not
// downloaded again. It returns the model directory.
func Download(ctx context.Context, name, modelsDir string, out io.Writer) (string, error) {
	m, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown model %q", name)
	}
	return download(ctx, http.DefaultClient, m, modelsDir, out)
}

func download(ctx context.Context, client *http.Client, m Model, modelsDir string, out io.Writer) (string, error) {
	destDir := filepath.Join(modelsDir, m.Dir)
	if isDir(destDir) {
		fmt.Fprintf(out, "  %s already exists: %s\n", m.Name, destDir)
		return destDir, nil
	}
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	fmt.Fprintf(out, "  Downloading %s...\n", m.Name)
	fmt.Fprintf(out, "  URL: %s\n", m.URL)
	fmt.Fprintf(out, "  Destination: %s\n", destDir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", m.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, unpack, then rename (atomic)
	f, err := os.CreateTemp(modelsDir, m.Dir+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpZip := f.Name()
	defer os.Remove(tmpZip)

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  m.Name,
	}
	written, err := io.Copy(pw, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := installZip(tmpZip, modelsDir, m.Dir); err != nil {
		return "", err
	}
	return destDir, nil
}

// Install copies a local model directory, or unpacks a local zip archive,
// into modelsDir. It returns the installed model directory.
func Install(src, modelsDir string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	if info.IsDir() {
		name := filepath.Base(filepath.Clean(src))
		dst := filepath.Join(modelsDir, name)
		if isDir(dst) {
			return dst, nil
		}
		tmp, err := os.MkdirTemp(modelsDir, "."+name+"-*")
		if err != nil {
			return "", fmt.Errorf("creating temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		if err := copyDir(src, tmp); err != nil {
			return "", fmt.Errorf("copying %s: %w", src, err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			return "", fmt.Errorf("moving model dir: %w", err)
		}
		return dst, nil
	}

	if !strings.EqualFold(filepath.Ext(src), ".zip") {
		return "", fmt.Errorf("%s: expected a model directory or .zip archive", src)
	}
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if err := installZip(src, modelsDir, name); err != nil {
		return "", err
	}
	return filepath.Join(modelsDir, name), nil
}

// installZip unpacks archive into a temp dir under modelsDir and renames the
// top-level directory named dir into place.
func installZip(archive, modelsDir, dir string) error {
	dst := filepath.Join(modelsDir, dir)
	if isDir(dst) {
		return nil
	}
	tmp, err := os.MkdirTemp(modelsDir, "."+dir+"-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := unzip(archive, tmp); err != nil {
		return fmt.Errorf("unpacking %s: %w", filepath.Base(archive), err)
	}

	// Vosk archives hold a single top-level directory; flat archives are
	// unpacked as the model directory itself.
	src := filepath.Join(tmp, dir)
	if !isDir(src) {
		src = tmp
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving model dir: %w", err)
	}
	return nil
}

func unzip(archive, dst string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	root := filepath.Clean(dst) + string(os.PathSeparator)
	for _, zf := range zr.File {
		path := filepath.Join(dst, zf.Name)
		if !strings.HasPrefix(path, root) {
			return fmt.Errorf("illegal path in archive: %s", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(zf, path); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(zf *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	in, err := zf.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyFileOrDir copies a file or directory recursively.
func copyFileOrDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst)
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if err := copyFileOrDir(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// progressWriter wraps an io.Writer and prints download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
