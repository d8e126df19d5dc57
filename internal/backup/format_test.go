package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/cogmap/internal/store"
)

func testArchive() *Archive {
	return &Archive{
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Runs: []ArchivedRun{
			{Run: store.Run{ID: "a", Map: "ring", Mode: "run"}, FinalDelta: "0.25"},
			{Run: store.Run{ID: "b", Map: "pair", Mode: "converge"}, FinalDelta: ""},
		},
	}
}

// corruptPayload flips one byte after the header line.
func corruptPayload(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	nl := strings.IndexByte(string(data), '\n')
	if nl < 0 || nl+10 >= len(data) {
		t.Fatalf("archive too short to corrupt: %d bytes", len(data))
	}
	data[nl+10] ^= 0xFF
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.cogmap.gz")

	header, err := Write(path, testArchive())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if header.Version != FormatVersion || header.RunCount != 2 {
		t.Errorf("header = %+v", header)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Runs) != 2 || got.Runs[0].ID != "a" || got.Runs[1].Map != "pair" {
		t.Errorf("runs = %+v", got.Runs)
	}
	if got.Runs[0].FinalDelta != "0.25" || got.Runs[1].FinalDelta != "" {
		t.Errorf("final deltas = %q, %q", got.Runs[0].FinalDelta, got.Runs[1].FinalDelta)
	}
	if !got.CreatedAt.Equal(testArchive().CreatedAt) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.cogmap.gz")
	written, err := Write(path, testArchive())
	if err != nil {
		t.Fatal(err)
	}

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if header.Checksum != written.Checksum || header.RunCount != 2 {
		t.Errorf("ReadHeader() = %+v, want %+v", header, written)
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.cogmap.gz")
	if _, err := Write(path, testArchive()); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("VerifyChecksum() on fresh archive: %v", err)
	}

	corruptPayload(t, path)
	if err := VerifyChecksum(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("VerifyChecksum() error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Read() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestReadHeader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"not json", "maps:\n  - name: ring\n", "parsing header"},
		{"future version", `{"version":9,"checksum":"sha256:00"}` + "\n", "unsupported backup version 9"},
		{"no newline", `{"version":1}`, "reading header line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.cogmap.gz")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := ReadHeader(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadHeader() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.cogmap.gz")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read() error = %v, want ErrNotExist", err)
	}
}
