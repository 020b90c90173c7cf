package models

// ServerSettings is the typed gameplay settings model. It maps onto the
// native properties file through the settings reconciler; the sleeper
// threshold is stored here as a player count but persisted natively as a
// percentage, so round trips can lose up to one player of precision.
type ServerSettings struct {
	Difficulty             string `json:"difficulty" toml:"difficulty"`
	GameMode               string `json:"game_mode" toml:"game_mode"`
	PVP                    bool   `json:"pvp" toml:"pvp"`
	MaxPlayers             int    `json:"max_players" toml:"max_players"`
	ViewDistance           int    `json:"view_distance" toml:"view_distance"`
	SleepersRequired       int    `json:"sleepers_required" toml:"sleepers_required"`
	SpawnProtectionRadius  int    `json:"spawn_protection_radius" toml:"spawn_protection_radius"`
	AllowFlight            bool   `json:"allow_flight" toml:"allow_flight"`
	EnableCommandBlocks    bool   `json:"enable_command_blocks" toml:"enable_command_blocks"`
	MessageOfTheDay        string `json:"motd" toml:"motd"`
}

// ApplyResult reports how a settings update landed: Applied means the live
// process saw the change, PendingRestart means only the on-disk file did.
type ApplyResult struct {
	Applied        bool `json:"applied"`
	PendingRestart bool `json:"pending_restart"`
}

// DefaultSettings returns the fallback settings used when neither a typed
// settings file nor a properties file provides a value.
func DefaultSettings() ServerSettings {
	return ServerSettings{
		Difficulty:            "normal",
		GameMode:              "survival",
		PVP:                   true,
		MaxPlayers:            20,
		ViewDistance:          10,
		SleepersRequired:      1,
		SpawnProtectionRadius: 16,
		AllowFlight:           false,
		EnableCommandBlocks:   false,
		MessageOfTheDay:       "A Minecraft Server",
	}
}
