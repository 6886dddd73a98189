package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv writes a config pointing the signature store into a temp dir.
func testEnv(t *testing.T, backend string) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	content := "signatures:\n  backend: " + backend + "\n  dir: " + filepath.Join(dir, "signatures") + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadVector(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"signature file", "[1.5, -2, 3]\nignored\n", 3, false},
		{"recognizer result", `{"text": "hi", "spk": [0.1, 0.2], "spk_frames": 42}`, 2, false},
		{"garbage", "hello", 0, true},
		{"empty list", "[]", 0, true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, strings.Repeat("v", i+1)+".txt", tt.content)
			v, err := readVector(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readVector() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(v) != tt.want {
				t.Errorf("readVector() = %v, want %d values", v, tt.want)
			}
		})
	}

	if _, err := readVector(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("readVector() should fail for a missing file")
	}
}

func TestSignaturesEnrollIdentifyList(t *testing.T) {
	for _, backend := range []string{"dir", "badger"} {
		t.Run(backend, func(t *testing.T) {
			cfgPath, dir := testEnv(t, backend)
			alice := writeFile(t, dir, "alice.vec", "[1, 0]")
			aliceAgain := writeFile(t, dir, "again.json", `{"text": "hello", "spk": [0.99, 0.1]}`)
			bob := writeFile(t, dir, "bob.vec", "[0, 1]")

			out, err := execute(t, "--config", cfgPath, "signatures", "enroll", "alice", alice)
			if err != nil {
				t.Fatalf("enroll alice: %v", err)
			}
			if !strings.Contains(out, "Enrolled new speaker alice") {
				t.Errorf("enroll alice output = %q", out)
			}

			out, err = execute(t, "--config", cfgPath, "signatures", "enroll", "someone", aliceAgain)
			if err != nil {
				t.Fatalf("enroll again: %v", err)
			}
			if !strings.Contains(out, "already enrolled as alice") {
				t.Errorf("enroll again output = %q", out)
			}

			if _, err := execute(t, "--config", cfgPath, "signatures", "enroll", "bob", bob); err != nil {
				t.Fatalf("enroll bob: %v", err)
			}

			out, err = execute(t, "--config", cfgPath, "signatures", "identify", aliceAgain)
			if err != nil {
				t.Fatalf("identify: %v", err)
			}
			if !strings.Contains(out, "alice") || strings.Contains(out, "bob") {
				t.Errorf("identify output = %q, want alice only", out)
			}

			out, err = execute(t, "--config", cfgPath, "signatures", "list")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") || strings.Contains(out, "someone") {
				t.Errorf("list output = %q, want alice and bob", out)
			}
		})
	}
}

func TestSignaturesListEmpty(t *testing.T) {
	cfgPath, _ := testEnv(t, "dir")
	out, err := execute(t, "--config", cfgPath, "signatures", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No registered speakers") {
		t.Errorf("list output = %q", out)
	}
}

func TestSignaturesCompare(t *testing.T) {
	cfgPath, dir := testEnv(t, "dir")
	a := writeFile(t, dir, "a.vec", "[1, 2, 3]")
	b := writeFile(t, dir, "b.vec", "[2, 4, 6]")
	c := writeFile(t, dir, "c.vec", "[1, 2]")

	out, err := execute(t, "--config", cfgPath, "signatures", "compare", a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out, "similarity=1.0000") || !strings.Contains(out, "same speaker") {
		t.Errorf("compare output = %q", out)
	}

	out, err = execute(t, "--config", cfgPath, "signatures", "compare", a, c)
	if err != nil {
		t.Fatalf("compare mismatch: %v", err)
	}
	if !strings.Contains(out, "Dimension mismatch") {
		t.Errorf("compare mismatch output = %q", out)
	}
}

func TestZeroThresholdAppliesEverywhere(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml",
		"signatures:\n  backend: dir\n  threshold: 0\n  dir: "+filepath.Join(dir, "signatures")+"\n")
	alice := writeFile(t, dir, "alice.vec", "[1, 0]")
	carol := writeFile(t, dir, "carol.vec", "[0.1, 1]")

	out, err := execute(t, "--config", cfgPath, "signatures", "compare", alice, carol)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out, "same speaker") {
		t.Errorf("compare output = %q, want same speaker", out)
	}

	if _, err := execute(t, "--config", cfgPath, "signatures", "enroll", "alice", alice); err != nil {
		t.Fatalf("enroll alice: %v", err)
	}
	out, err = execute(t, "--config", cfgPath, "signatures", "enroll", "carol", carol)
	if err != nil {
		t.Fatalf("enroll carol: %v", err)
	}
	if !strings.Contains(out, "already enrolled as alice") {
		t.Errorf("enroll carol output = %q, want a match on alice", out)
	}
}

func TestRecognizeLabelNeedsSingleFile(t *testing.T) {
	cfgPath, _ := testEnv(t, "dir")
	defer func() { recognizeLabel = "" }()
	if _, err := execute(t, "--config", cfgPath, "recognize", "--label", "x", "a.wav", "b.wav"); err == nil {
		t.Error("recognize --label with two files should fail")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "signatures:\n  backend: sqlite\n")
	if _, err := execute(t, "--config", cfgPath, "signatures", "list"); err == nil {
		t.Error("an invalid config should be rejected")
	}
}

func TestVersion(t *testing.T) {
	cfgPath, _ := testEnv(t, "dir")
	out, err := execute(t, "--config", cfgPath, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "gostt-spk v"+Version) {
		t.Errorf("version output = %q", out)
	}
}
