package vectorstore

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		name    string
		want    Backend
		wantErr bool
	}{
		{"", BackendFlat, false},
		{"flat", BackendFlat, false},
		{"faiss", BackendFAISS, false},
		{"opensearch", BackendOpenSearch, false},
		{"qdrant", "", true},
		{"FLAT", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBackend(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBackend(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "pinecone"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewDefaultsToFlat(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Options{
		IndexPath:    filepath.Join(dir, "index.bin"),
		MetadataPath: filepath.Join(dir, "metadata.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*FlatStore); !ok {
		t.Errorf("expected *FlatStore, got %T", store)
	}
}
