package dl1

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Configuration struct {
	MaxEvents   int      `json:"max_events" yaml:"max_events"`
	Verbosity   int      `json:"verbosity" yaml:"verbosity"`
	FileIn      string   `json:"file_in" yaml:"file_in"`
	AllowedTels []uint16 `json:"allowed_tels" yaml:"allowed_tels"`
	NoDB        bool     `json:"no_db" yaml:"no_db"`
	Host        string   `json:"host" yaml:"host"`
	User        string   `json:"user" yaml:"user"`
	Passwd      string   `json:"pass" yaml:"pass"`
	DBName      string   `json:"dbname" yaml:"dbname"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func LoadConfiguration(filename string) (Configuration, error) {
	var config Configuration

	// Set default values
	// MaxEvents <= 0 reads the whole file
	config.MaxEvents = 0
	config.Verbosity = 0
	config.NoDB = false
	config.Host = "db.cta-exp.org"
	config.User = "arrayreader"
	config.Passwd = "readonly"
	config.DBName = "SUBARRAY"

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}

	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		err = fmt.Errorf("unsupported config format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return config, err
	}
	return config, nil
}
