package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"go.uber.org/zap"
)

func TestNewDirSink_Validation(t *testing.T) {
	if _, err := NewDirSink("", zap.NewNop()); err == nil {
		t.Error("Expected error for empty root")
	}
	if _, err := NewDirSink(t.TempDir(), nil); err == nil {
		t.Error("Expected error for nil logger")
	}

	root := filepath.Join(t.TempDir(), "staging", "nested")
	s, err := NewDirSink(root, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if info, err := os.Stat(s.Root()); err != nil || !info.IsDir() {
		t.Fatalf("Expected root directory to exist, got %v", err)
	}
}

func TestDirSink_Deliver(t *testing.T) {
	root := t.TempDir()
	s, err := NewDirSink(root, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	tests := []struct {
		name     string
		docName  string
		wantPath string
	}{
		{name: "flat", docName: "batch.json", wantPath: "batch.json"},
		{name: "nested", docName: "2026/10/batch.json", wantPath: "2026/10/batch.json"},
		{name: "escape_attempt", docName: "../../etc/passwd", wantPath: "etc/passwd"},
		{name: "absolute", docName: "/abs/batch.json", wantPath: "abs/batch.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte("{\n  \"VehicleID\": \"" + tt.name + "\"\n}\n")
			doc := &types.Document{Name: tt.docName, Body: body}

			if err := s.Deliver(context.Background(), Delivery{Doc: doc}); err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(tt.wantPath)))
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != string(body) {
				t.Errorf("Expected body %q, got %q", body, got)
			}
		})
	}
}

func TestDirSink_DeliverTwiceOverwrites(t *testing.T) {
	root := t.TempDir()
	s, _ := NewDirSink(root, zap.NewNop())
	doc := &types.Document{Name: "dup.json", Body: []byte(`[]`)}

	for range 2 {
		if err := s.Deliver(context.Background(), Delivery{Doc: doc}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "dup.json" {
		t.Fatalf("Expected only dup.json, got %v", entries)
	}
}

func TestDirSink_DeliverErrors(t *testing.T) {
	s, _ := NewDirSink(t.TempDir(), zap.NewNop())

	if err := s.Deliver(context.Background(), Delivery{}); err == nil {
		t.Error("Expected error for nil document")
	}
	if err := s.Deliver(context.Background(), Delivery{Doc: &types.Document{Name: ""}}); err == nil {
		t.Error("Expected error for empty document name")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Deliver(ctx, Delivery{Doc: &types.Document{Name: "a.json"}}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
