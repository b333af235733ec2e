package geoip

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samirrijal/geofence/internal/core/domain"
)

func TestNewReader(t *testing.T) {
	tests := []struct {
		name     string
		mmdbPath string
	}{
		{"empty path returns nil reader", ""},
		{"nonexistent file returns nil reader", "/nonexistent/path/file.mmdb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewReader(tt.mmdbPath)
			if err != nil {
				t.Fatalf("NewReader() unexpected error: %v", err)
			}
			if reader != nil {
				t.Fatalf("NewReader() expected nil reader but got %v", reader)
			}
		})
	}
}

func TestNewReader_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	if err := os.WriteFile(path, []byte("not an mmdb"), 0o600); err != nil {
		t.Fatal(err)
	}
	reader, err := NewReader(path)
	if err == nil {
		_ = reader.Close()
		t.Fatal("expected error for corrupt database")
	}
}

func TestNilReader(t *testing.T) {
	var r *Reader
	if _, err := r.Lookup("8.8.8.8"); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
	if r.Path() != "" {
		t.Error("nil reader should have empty path")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil reader: %v", err)
	}
}

func TestParseIP(t *testing.T) {
	tests := map[string]string{
		"8.8.8.8":          "8.8.8.8",
		"8.8.8.8:443":      "8.8.8.8",
		"[2001:db8::1]:80": "2001:db8::1",
		"2001:db8::1":      "2001:db8::1",
	}
	for in, want := range tests {
		if got := parseIP(in); got == nil || got.String() != want {
			t.Errorf("parseIP(%q) = %v, want %s", in, got, want)
		}
	}
	if parseIP("not-an-ip") != nil {
		t.Error("expected nil for invalid input")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"172.16.5.4", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"fc00::1", true},
		{"0.0.0.0", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
}

func TestToCoordinate(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	c, err := toCoordinate(43.26, -2.93, 20, at)
	if err != nil {
		t.Fatal(err)
	}
	if c.PrecisionMeters != 20000 {
		t.Errorf("precision = %v, want 20000", c.PrecisionMeters)
	}
	if c.Method != domain.MethodNetworkInferred || !c.CapturedAt.Equal(at) {
		t.Errorf("unexpected coordinate %+v", c)
	}

	c, err = toCoordinate(43.26, -2.93, 0, at)
	if err != nil {
		t.Fatal(err)
	}
	if c.PrecisionMeters != defaultPrecisionMeters {
		t.Errorf("precision = %v, want default", c.PrecisionMeters)
	}

	if _, err := toCoordinate(95, 0, 1, at); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
}
