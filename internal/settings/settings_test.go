package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adlikkk/gamehost-one/internal/models"
)

func TestSleeperMappingClamps(t *testing.T) {
	tests := []struct {
		name     string
		required int
		max      int
		wantPct  int
	}{
		{"one of twenty", 1, 20, 5},
		{"all of twenty", 20, 20, 100},
		{"half of ten", 5, 10, 50},
		{"over max clamps to 100", 30, 20, 100},
		{"zero max treated as one", 1, 0, 100},
		{"zero required treated as one", 0, 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SleepersToPercentage(tt.required, tt.max)
			if got != tt.wantPct {
				t.Errorf("SleepersToPercentage(%d, %d) = %d, want %d", tt.required, tt.max, got, tt.wantPct)
			}
		})
	}
}

// The percentage mapping rounds up on both legs, so a round trip can drift.
// The drift is bounded: for any 1 <= n <= max the result is within one
// player of n.
func TestSleeperRoundTripBoundedError(t *testing.T) {
	for max := 1; max <= 50; max++ {
		for n := 1; n <= max; n++ {
			pct := SleepersToPercentage(n, max)
			back := PercentageToSleepers(pct, max)
			diff := back - n
			if diff < -1 || diff > 1 {
				t.Fatalf("round trip drifted more than one: n=%d max=%d pct=%d back=%d", n, max, pct, back)
			}
		}
	}
}

func TestPercentageToSleepersClamps(t *testing.T) {
	if got := PercentageToSleepers(0, 20); got != 1 {
		t.Errorf("PercentageToSleepers(0, 20) = %d, want 1", got)
	}
	if got := PercentageToSleepers(200, 20); got != 20 {
		t.Errorf("PercentageToSleepers(200, 20) = %d, want 20", got)
	}
}

func TestLoadDerivesFromPropertiesAndPersists(t *testing.T) {
	dir := t.TempDir()
	content := "difficulty=hard\nmax-players=10\nplayers-sleeping-percentage=50\npvp=false\n"
	if err := os.WriteFile(filepath.Join(dir, "server.properties"), []byte(content), 0644); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	settings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.Difficulty != "hard" {
		t.Errorf("Difficulty = %q, want hard", settings.Difficulty)
	}
	if settings.MaxPlayers != 10 {
		t.Errorf("MaxPlayers = %d, want 10", settings.MaxPlayers)
	}
	if settings.SleepersRequired != 5 {
		t.Errorf("SleepersRequired = %d, want 5 (50%% of 10)", settings.SleepersRequired)
	}
	if settings.PVP {
		t.Error("PVP = true, want false")
	}

	// The derived result is persisted as the typed file.
	if _, err := os.Stat(filepath.Join(dir, "settings.toml")); err != nil {
		t.Errorf("settings.toml not persisted: %v", err)
	}
}

func TestLoadPrefersSavedSettingsFile(t *testing.T) {
	dir := t.TempDir()
	saved := models.DefaultSettings()
	saved.Difficulty = "peaceful"
	saved.MaxPlayers = 4
	if err := Apply(dir, saved); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Diverging properties file must not win over the typed file.
	if err := os.WriteFile(filepath.Join(dir, "server.properties"), []byte("difficulty=hard\n"), 0644); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	settings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Difficulty != "peaceful" {
		t.Errorf("Difficulty = %q, want peaceful from settings.toml", settings.Difficulty)
	}
	if settings.MaxPlayers != 4 {
		t.Errorf("MaxPlayers = %d, want 4", settings.MaxPlayers)
	}
}

func TestApplyTwiceIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	seed := "# seeded file\nlevel-name=world\ndifficulty=easy\n"
	propsPath := filepath.Join(dir, "server.properties")
	if err := os.WriteFile(propsPath, []byte(seed), 0644); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	settings := models.DefaultSettings()
	settings.Difficulty = "hard"
	settings.MaxPlayers = 8

	if err := Apply(dir, settings); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	first, err := os.ReadFile(propsPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if err := Apply(dir, settings); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	second, err := os.ReadFile(propsPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("repeated apply changed the file:\nfirst:  %q\nsecond: %q", first, second)
	}

	// The untouched key keeps its place and value.
	if got := string(first); !strings.Contains(got, "level-name=world") {
		t.Errorf("level-name lost: %q", got)
	}
}
