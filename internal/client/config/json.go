package config

import (
	"encoding/json"
	"os"

	"github.com/dpavlenko/stayhub/internal/flagx"
	"github.com/dpavlenko/stayhub/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "10s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	DatabaseDSN    string         `json:"database_dsn"`
	AMQPURL        string         `json:"amqp_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. When no file is named, nothing is loaded.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.DatabaseDSN = jc.DatabaseDSN
	cfg.AMQPURL = jc.AMQPURL
	cfg.RequestTimeout = jc.RequestTimeout.Duration
}
