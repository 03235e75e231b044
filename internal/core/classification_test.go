package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildClassificationIndex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ClassificationIndex
	}{
		{
			name:  "terminal row kept, parent row skipped",
			input: "GRUPPA|TOVPOZ|NAIM|DATA|PRIZ\n01|01|Live animals||\n01|00|LIVE ANIMALS (group)||1\n",
			want:  ClassificationIndex{"0101": "Live animals"},
		},
		{
			name:  "later terminal row overwrites",
			input: "h\n01|01|first||\n01|01|second||\n",
			want:  ClassificationIndex{"0101": "second"},
		},
		{
			name:  "header only",
			input: "GRUPPA|TOVPOZ|NAIM|DATA|PRIZ\n",
			want:  ClassificationIndex{},
		},
		{
			name:  "empty file",
			input: "",
			want:  ClassificationIndex{},
		},
		{
			name:  "extra trailing fields ignored",
			input: "h\n02|03|Meat|01.01.2020||x|y\n",
			want:  ClassificationIndex{"0203": "Meat"},
		},
		{
			name:  "BOM before header",
			input: "\xEF\xBB\xBFh\n84|71|Computers||\n",
			want:  ClassificationIndex{"8471": "Computers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildClassificationIndex(strings.NewReader(tt.input), "TNVED3_UTF.TXT")
			if err != nil {
				t.Fatalf("BuildClassificationIndex() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries %v, want %d", len(got), got, len(tt.want))
			}
			for code, label := range tt.want {
				if got[code] != label {
					t.Errorf("index[%q] = %q, want %q", code, got[code], label)
				}
			}
		})
	}
}

func TestBuildClassificationIndex_ShortRow(t *testing.T) {
	input := "h\n01|01|Live animals||\n01|02|truncated\n"
	_, err := BuildClassificationIndex(strings.NewReader(input), "TNVED3_UTF.TXT")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("error %T is not a RowError", err)
	}
	if rowErr.Line != 3 {
		t.Errorf("Line = %d, want 3", rowErr.Line)
	}
	if rowErr.File != "TNVED3_UTF.TXT" {
		t.Errorf("File = %q", rowErr.File)
	}
}

func TestBuildClassificationIndexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TNVED3_UTF.TXT")
	if err := os.WriteFile(path, []byte("h\n01|01|Лошади||\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := BuildClassificationIndexFile(path)
	if err != nil {
		t.Fatalf("BuildClassificationIndexFile() error = %v", err)
	}
	if got["0101"] != "Лошади" {
		t.Errorf("index[0101] = %q, want %q", got["0101"], "Лошади")
	}

	if _, err := BuildClassificationIndexFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
