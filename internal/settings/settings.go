// Package settings reconciles the typed gameplay settings model with the
// server's native properties file. The typed model lives in settings.toml in
// the install directory; the properties file stays authoritative for the
// running process.
package settings

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/properties"
)

const (
	settingsFileName   = "settings.toml"
	propertiesFileName = "server.properties"
)

// SleepersToPercentage converts a required-sleeper count to the native
// percentage key. The mapping rounds up and clamps to [1, 100], so round
// trips through PercentageToSleepers can drift by one player.
func SleepersToPercentage(required, maxPlayers int) int {
	if maxPlayers < 1 {
		maxPlayers = 1
	}
	if required < 1 {
		required = 1
	}
	pct := int(math.Ceil(float64(required) / float64(maxPlayers) * 100))
	if pct < 1 {
		pct = 1
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// PercentageToSleepers converts the native percentage key back to a player
// count, rounding up and clamping to [1, maxPlayers].
func PercentageToSleepers(percentage, maxPlayers int) int {
	if maxPlayers < 1 {
		maxPlayers = 1
	}
	required := int(math.Ceil(float64(percentage) / 100 * float64(maxPlayers)))
	if required < 1 {
		required = 1
	}
	if required > maxPlayers {
		required = maxPlayers
	}
	return required
}

// Load returns the typed settings for an install directory. A saved
// settings.toml wins; otherwise the settings are derived from the properties
// file (falling back to defaults per key) and persisted before returning.
func Load(installDir string) (models.ServerSettings, error) {
	settingsPath := filepath.Join(installDir, settingsFileName)

	if data, err := os.ReadFile(settingsPath); err == nil {
		settings := models.DefaultSettings()
		if err := toml.Unmarshal(data, &settings); err != nil {
			return models.ServerSettings{}, fmt.Errorf("failed to parse %s: %w", settingsFileName, err)
		}
		return settings, nil
	} else if !os.IsNotExist(err) {
		return models.ServerSettings{}, fmt.Errorf("failed to read %s: %w", settingsFileName, err)
	}

	props, err := properties.ReadFile(filepath.Join(installDir, propertiesFileName))
	if err != nil {
		return models.ServerSettings{}, err
	}

	settings := fromProperties(props)
	if err := save(installDir, settings); err != nil {
		log.Printf("[Settings] Failed to persist derived settings for %s: %v", installDir, err)
	}
	return settings, nil
}

// Apply persists settings as the typed file and rewrites the matching keys in
// the properties file. The properties rewrite is idempotent; unknown keys and
// comments survive untouched.
func Apply(installDir string, settings models.ServerSettings) error {
	if err := save(installDir, settings); err != nil {
		return err
	}

	updates := map[string]string{
		"difficulty":                  settings.Difficulty,
		"gamemode":                    settings.GameMode,
		"pvp":                         strconv.FormatBool(settings.PVP),
		"max-players":                 strconv.Itoa(settings.MaxPlayers),
		"view-distance":               strconv.Itoa(settings.ViewDistance),
		"players-sleeping-percentage": strconv.Itoa(SleepersToPercentage(settings.SleepersRequired, settings.MaxPlayers)),
		"spawn-protection":            strconv.Itoa(settings.SpawnProtectionRadius),
		"allow-flight":                strconv.FormatBool(settings.AllowFlight),
		"enable-command-block":        strconv.FormatBool(settings.EnableCommandBlocks),
		"motd":                        settings.MessageOfTheDay,
	}

	return properties.UpdateFile(filepath.Join(installDir, propertiesFileName), updates)
}

func save(installDir string, settings models.ServerSettings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(installDir, settingsFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", settingsFileName, err)
	}
	return nil
}

func fromProperties(props map[string]string) models.ServerSettings {
	settings := models.DefaultSettings()

	if v, ok := props["difficulty"]; ok {
		settings.Difficulty = v
	}
	if v, ok := props["gamemode"]; ok {
		settings.GameMode = v
	}
	if v, ok := props["pvp"]; ok {
		settings.PVP = v == "true"
	}
	if v, ok := props["max-players"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			settings.MaxPlayers = n
		}
	}
	if v, ok := props["view-distance"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			settings.ViewDistance = n
		}
	}
	if v, ok := props["players-sleeping-percentage"]; ok {
		if pct, err := strconv.Atoi(v); err == nil {
			settings.SleepersRequired = PercentageToSleepers(pct, settings.MaxPlayers)
		}
	}
	if v, ok := props["spawn-protection"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			settings.SpawnProtectionRadius = n
		}
	}
	if v, ok := props["allow-flight"]; ok {
		settings.AllowFlight = v == "true"
	}
	if v, ok := props["enable-command-block"]; ok {
		settings.EnableCommandBlocks = v == "true"
	}
	if v, ok := props["motd"]; ok {
		settings.MessageOfTheDay = v
	}

	return settings
}
