package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// GlobalConfig represents the CLI profile stored in config.json
type GlobalConfig struct {
	OwnerID string `json:"owner_id"`
	APIURL  string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath

	ownerIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "scandoq"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete config file: %w", err)
	}

	return nil
}

// IsValidOwnerID reports whether id is accepted by the API's owner header.
func IsValidOwnerID(id string) bool {
	return ownerIDPattern.MatchString(id)
}

// SettingsSource represents where the effective owner came from
type SettingsSource string

const (
	SourceFlag         SettingsSource = "flag"
	SourceEnv          SettingsSource = "env"
	SourceGlobalConfig SettingsSource = "global_config"
	SourceNone         SettingsSource = "none"
)

// GetSettingsSource returns where the owner id is taken from and the
// effective owner and URL. Checks in order: flag -> env -> global_config -> none
func GetSettingsSource(flagOwner, flagAPIURL string) (SettingsSource, string, string) {
	ownerID, apiURL, err := resolveSettings(flagOwner, flagAPIURL)
	if err != nil || ownerID == "" {
		return SourceNone, "", apiURL
	}

	switch {
	case flagOwner != "":
		return SourceFlag, ownerID, apiURL
	case os.Getenv(envOwnerID) != "":
		return SourceEnv, ownerID, apiURL
	default:
		return SourceGlobalConfig, ownerID, apiURL
	}
}
