package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

func buildBundle(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write file %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestParseTestcaseBundle(t *testing.T) {
	data := buildBundle(t, map[string]string{
		"1.in":  "5 7\n",
		"1.out": "12\n",
		"0.in":  "1 2\n",
		"0.out": "3\n",
	})

	parsed, err := ParseTestcaseBundle("cases.tar.gz", data)
	if err != nil {
		t.Fatalf("ParseTestcaseBundle: %v", err)
	}
	if len(parsed.Cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(parsed.Cases))
	}
	if parsed.Cases[0].Input != "1 2\n" || parsed.Cases[0].Output != "3\n" {
		t.Errorf("case 0 = %+v", parsed.Cases[0])
	}
	if parsed.Cases[1].Input != "5 7\n" || parsed.Cases[1].Output != "12\n" {
		t.Errorf("case 1 = %+v", parsed.Cases[1])
	}
	if parsed.SHA256 == "" {
		t.Error("missing digest")
	}
	if !strings.HasPrefix(parsed.ObjectKey, "testcase-bundles/") || !strings.HasSuffix(parsed.ObjectKey, ".tar.gz") {
		t.Errorf("object key = %q", parsed.ObjectKey)
	}
}

func TestParseTestcaseBundleErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		files    map[string]string
		wantErr  string
	}{
		{
			name:     "empty data",
			filename: "cases.tar.gz",
			wantErr:  "empty bundle data",
		},
		{
			name:     "zip rejected",
			filename: "cases.zip",
			files:    map[string]string{"0.in": "1", "0.out": "1"},
			wantErr:  "zip bundles are not supported",
		},
		{
			name:     "unknown format",
			filename: "cases.rar",
			files:    map[string]string{"0.in": "1", "0.out": "1"},
			wantErr:  "unsupported bundle format",
		},
		{
			name:     "missing output",
			filename: "cases.tar.gz",
			files:    map[string]string{"0.in": "1"},
			wantErr:  "must have both .in and .out",
		},
		{
			name:     "non consecutive orders",
			filename: "cases.tar.gz",
			files:    map[string]string{"0.in": "1", "0.out": "1", "2.in": "2", "2.out": "2"},
			wantErr:  "consecutive",
		},
		{
			name:     "invalid filename",
			filename: "cases.tar.gz",
			files:    map[string]string{"a.in": "1", "a.out": "1"},
			wantErr:  "invalid testcase filename",
		},
		{
			name:     "directories rejected",
			filename: "cases.tar.gz",
			files:    map[string]string{"sub/0.in": "1", "sub/0.out": "1"},
			wantErr:  "must not contain directories",
		},
		{
			name:     "no testcases",
			filename: "cases.tgz",
			files:    map[string]string{},
			wantErr:  "no testcases",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []byte
			if tt.files != nil {
				data = buildBundle(t, tt.files)
			}
			_, err := ParseTestcaseBundle(tt.filename, data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
