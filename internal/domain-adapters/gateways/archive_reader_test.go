package gateways

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

const testPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>io.jenkins.tools.bom</groupId>
    <artifactId>parent</artifactId>
    <version>2.176.1-rc41.149af85f094d</version>
  </parent>
  <artifactId>bom</artifactId>
  <scm>
    <connection>scm:git:git://github.com/jenkinsci/bom.git</connection>
    <url>https://github.com/jenkinsci/bom</url>
    <tag>149af85f094da863ddc294e50b5d8caaab549f95</tag>
  </scm>
</project>`

// writeZip creates a zip file in a temp dir with the given entries in order
func writeZip(t *testing.T, files [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, file := range files {
		w, err := zw.Create(file[0])
		if err != nil {
			t.Fatalf("failed to add %s: %v", file[0], err)
		}
		if _, err := w.Write([]byte(file[1])); err != nil {
			t.Fatalf("failed to write %s: %v", file[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return path
}

func TestZipArchiveReader_Entries(t *testing.T) {
	dir := "io/jenkins/tools/bom/bom/2.176.1-rc41.149af85f094d/"
	path := writeZip(t, [][2]string{
		{dir, ""},
		{dir + "bom-2.176.1-rc41.149af85f094d.jar", "jar"},
		{dir + "bom-2.176.1-rc41.149af85f094d.pom", testPom},
	})

	entries, err := NewZipArchiveReader().Entries(path)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (directories skipped)", len(entries))
	}
	if entries[0].Descriptor != nil {
		t.Error("jar entry should not carry a descriptor")
	}

	pom := entries[1]
	if pom.DescriptorErr != nil {
		t.Fatalf("DescriptorErr = %v", pom.DescriptorErr)
	}
	d := pom.Descriptor
	if d.GroupID != "io.jenkins.tools.bom" || d.ArtifactID != "bom" || d.Version != "2.176.1-rc41.149af85f094d" {
		t.Errorf("GAV = %s", d.GAV())
	}
	if !d.HasScm || d.ScmURL != "https://github.com/jenkinsci/bom" || d.ScmTag != "149af85f094da863ddc294e50b5d8caaab549f95" {
		t.Errorf("scm = %+v", d)
	}
	if d.ExpectedPath() != pom.Path {
		t.Errorf("ExpectedPath() = %s, want %s", d.ExpectedPath(), pom.Path)
	}
}

func TestZipArchiveReader_Empty(t *testing.T) {
	entries, err := NewZipArchiveReader().Entries(writeZip(t, nil))
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestZipArchiveReader_MalformedDescriptor(t *testing.T) {
	path := writeZip(t, [][2]string{{"a/b/1/b-1.pom", "<project><groupId>a"}})

	entries, err := NewZipArchiveReader().Entries(path)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if entries[0].DescriptorErr == nil {
		t.Error("expected DescriptorErr for truncated POM")
	}
}

func TestZipArchiveReader_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	if err := os.WriteFile(path, []byte("<html>Not found</html>"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewZipArchiveReader().Entries(path); err == nil {
		t.Error("expected error for non-zip file")
	}
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name      string
		pom       string
		wantGroup string
		wantScm   bool
		wantErr   bool
	}{
		{
			name:      "own coordinates win over parent",
			pom:       `<project><parent><groupId>p</groupId><version>1</version></parent><groupId>g</groupId><artifactId>a</artifactId><version>2</version></project>`,
			wantGroup: "g",
		},
		{
			name:      "no scm section",
			pom:       `<project><groupId>g</groupId><artifactId>a</artifactId><version>1</version></project>`,
			wantGroup: "g",
		},
		{
			name:      "empty scm section",
			pom:       `<project><groupId>g</groupId><scm/></project>`,
			wantGroup: "g",
			wantScm:   true,
		},
		{
			name:    "wrong root element",
			pom:     `<settings/>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor(strings.NewReader(tt.pom))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if d.GroupID != tt.wantGroup {
				t.Errorf("GroupID = %q, want %q", d.GroupID, tt.wantGroup)
			}
			if d.HasScm != tt.wantScm {
				t.Errorf("HasScm = %v, want %v", d.HasScm, tt.wantScm)
			}
		})
	}
}
