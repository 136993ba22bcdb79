package config

import (
	"github.com/spf13/viper"
)

// Storage represents the artifact storage configuration. Uploaded and
// exported artifacts always live under separate namespaces below Root.
type Storage struct {
	Root              string
	AllowedExtensions []string
}

// getStorageConfig get storage config
func getStorageConfig(v *viper.Viper) *Storage {
	return &Storage{
		Root:              getStringOrDefault(v, "storage.root", "./data"),
		AllowedExtensions: getStringSliceOrDefault(v, "storage.allowed_extensions", []string{"csv", "xlsx"}),
	}
}
