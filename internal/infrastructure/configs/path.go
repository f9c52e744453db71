package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/ticketchat/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the -config flag, the
// TICKETCHAT_CONFIG env var or a list of well-known locations. An empty
// result means defaults and env overrides only.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("TICKETCHAT_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting(
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/ticketchat/config.yaml",
			"/app/config.yaml", // common in Docker
		)
	}

	return configPath
}

func firstExisting(candidates ...string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
