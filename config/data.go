package config

import (
	"time"

	"github.com/spf13/viper"
)

// Data represents the data layer configuration.
type Data struct {
	Driver          string
	Source          string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifeTime time.Duration
}

// getDataConfig returns data config
func getDataConfig(v *viper.Viper) *Data {
	return &Data{
		Driver:          getStringOrDefault(v, "data.database.driver", "postgres"),
		Source:          v.GetString("data.database.source"),
		MaxIdleConn:     getIntOrDefault(v, "data.database.max_idle_conn", 10),
		MaxOpenConn:     getIntOrDefault(v, "data.database.max_open_conn", 100),
		ConnMaxLifeTime: getDurationOrDefault(v, "data.database.conn_max_life_time", time.Hour),
	}
}
