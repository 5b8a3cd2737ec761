package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts both string values such as "15m" and integer nanoseconds
// when unmarshalling JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
}

// jsonConfig is the DTO used only for reading JSON configuration files.
// After unmarshalling, set fields are copied into the runtime Config.
type jsonConfig struct {
	DatabaseDSN    *string             `json:"database_dsn"`
	SecretKey      *string             `json:"secret_key"`
	TokenValidity  *Duration           `json:"token_validity"`
	S3RootUser     *string             `json:"s3_root_user"`
	S3RootPassword *string             `json:"s3_root_password"`
	S3Bucket       *string             `json:"s3_bucket"`
	S3Region       *string             `json:"s3_region"`
	S3BaseEndpoint *string             `json:"s3_base_endpoint"`
	PIDProviders   map[string][]string `json:"pid_providers"`
}

// applyJSON overlays values from the JSON file at path onto c. An empty path
// means no file is loaded. Absent keys keep their current values.
func (c *Config) applyJSON(path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	jc := &jsonConfig{}
	if err := json.Unmarshal(file, jc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if jc.DatabaseDSN != nil {
		c.DatabaseDSN = *jc.DatabaseDSN
	}
	if jc.SecretKey != nil {
		c.SecretKey = *jc.SecretKey
	}
	if jc.TokenValidity != nil {
		c.TokenValidity = jc.TokenValidity.Duration
	}
	if jc.S3RootUser != nil {
		c.S3RootUser = *jc.S3RootUser
	}
	if jc.S3RootPassword != nil {
		c.S3RootPassword = *jc.S3RootPassword
	}
	if jc.S3Bucket != nil {
		c.S3Bucket = *jc.S3Bucket
	}
	if jc.S3Region != nil {
		c.S3Region = *jc.S3Region
	}
	if jc.S3BaseEndpoint != nil {
		c.S3BaseEndpoint = *jc.S3BaseEndpoint
	}
	if jc.PIDProviders != nil {
		c.PIDProviders = jc.PIDProviders
	}

	return nil
}
