package federation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectory_DefaultPeers(t *testing.T) {
	d := NewDirectory(DefaultPeers())

	peers := d.Peers(DefaultTTL)
	if len(peers) != 3 {
		t.Fatalf("Expected 3 peers, got %d", len(peers))
	}
	want := []string{"nodejs@localhost:8787", "python@localhost:8788", "rust@localhost:8789"}
	for i, p := range peers {
		if p.ID != want[i] {
			t.Errorf("peer %d: expected %s, got %s", i, want[i], p.ID)
		}
		if p.Status != StatusActive {
			t.Errorf("peer %s: expected active, got %s", p.ID, p.Status)
		}
	}
}

func TestDirectory_TouchAndTTL(t *testing.T) {
	d := NewDirectory(DefaultPeers())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if !d.Touch("http://localhost:8788/actor") {
		t.Fatal("Expected actor url to match python peer")
	}
	if d.Touch("https://stranger.example/actor") {
		t.Error("Expected unknown actor not to match")
	}
	if d.Touch("") {
		t.Error("Expected empty actor not to match")
	}

	peers := d.Peers(time.Minute)
	if !peers[1].LastSeen.Equal(now) {
		t.Errorf("Expected LastSeen %v, got %v", now, peers[1].LastSeen)
	}
	if !peers[0].LastSeen.IsZero() {
		t.Errorf("Expected nodejs peer untouched, got %v", peers[0].LastSeen)
	}

	now = now.Add(2 * time.Minute)
	peers = d.Peers(time.Minute)
	if peers[1].Status != StatusOffline {
		t.Errorf("Expected python peer offline after ttl, got %s", peers[1].Status)
	}
	if peers[0].Status != StatusActive {
		t.Errorf("Expected never-seen peer to keep its configured status, got %s", peers[0].Status)
	}

	d.Touch("python@localhost:8788")
	if got := d.Peers(time.Minute)[1].Status; got != StatusActive {
		t.Errorf("Expected python peer active again, got %s", got)
	}
}

func TestDirectory_TouchMatchesWholeURL(t *testing.T) {
	tests := []struct {
		actor string
		want  bool
	}{
		{"http://localhost:8787", true},
		{"http://localhost:8787/", true},
		{"http://localhost:8787/users/alice", true},
		{"http://localhost:87870/users/alice", false},
		{"http://localhost:8787evil/actor", false},
		{"http://localhost:878", false},
	}
	for _, tt := range tests {
		d := NewDirectory([]Peer{{ID: "nodejs@localhost:8787", URL: "http://localhost:8787/"}})
		if got := d.Touch(tt.actor); got != tt.want {
			t.Errorf("Touch(%q) = %v; want %v", tt.actor, got, tt.want)
		}
		if seen := !d.Peers(DefaultTTL)[0].LastSeen.IsZero(); seen != tt.want {
			t.Errorf("Touch(%q) left LastSeen set = %v", tt.actor, seen)
		}
	}
}

func TestDirectory_TouchIgnoresPeersWithoutURL(t *testing.T) {
	d := NewDirectory([]Peer{{ID: "offline@nowhere"}})
	if d.Touch("https://anyone.example/actor") {
		t.Error("Expected a peer without url to match only by id")
	}
	if !d.Touch("offline@nowhere") {
		t.Error("Expected id match")
	}
}

func TestDirectory_ReplaceKeepsLastSeen(t *testing.T) {
	d := NewDirectory(DefaultPeers())
	d.Touch("rust@localhost:8789")
	seen := d.Peers(DefaultTTL)[2].LastSeen

	d.Replace([]Peer{
		{ID: "rust@localhost:8789", URL: "http://localhost:8789"},
		{ID: "go@localhost:8790", URL: "http://localhost:8790"},
	})
	if d.Len() != 2 {
		t.Fatalf("Expected 2 peers, got %d", d.Len())
	}
	peers := d.Peers(DefaultTTL)
	if peers[0].ID != "go@localhost:8790" || peers[0].Status != StatusActive {
		t.Errorf("Unexpected new peer: %+v", peers[0])
	}
	if !peers[1].LastSeen.Equal(seen) {
		t.Errorf("Expected LastSeen to survive replace, got %v", peers[1].LastSeen)
	}
}

func TestDirectory_PeersReturnsCopy(t *testing.T) {
	d := NewDirectory(DefaultPeers())
	peers := d.Peers(DefaultTTL)
	peers[0].Capabilities[0] = "mutated"
	if d.Peers(DefaultTTL)[0].Capabilities[0] != "phase4" {
		t.Error("Expected directory to be unaffected by caller mutation")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	content := `peers:
  - id: alpha@example.org
    url: https://alpha.example.org
    capabilities: [federation, fractal_expansion]
  - id: beta@example.org
    url: https://beta.example.org
    status: offline
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	peers, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("Expected 2 peers, got %d", len(peers))
	}
	if len(peers[0].Capabilities) != 2 || peers[0].Capabilities[1] != "fractal_expansion" {
		t.Errorf("Unexpected capabilities: %v", peers[0].Capabilities)
	}

	d := NewDirectory(peers)
	got := d.Peers(DefaultTTL)
	if got[1].Status != StatusOffline {
		t.Errorf("Expected configured offline status, got %s", got[1].Status)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"missing url", "peers:\n  - id: a\n"},
		{"duplicate", "peers:\n  - id: a\n    url: http://a\n  - id: a\n    url: http://b\n"},
		{"not yaml", "peers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
