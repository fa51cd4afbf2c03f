// Package config loads and validates the path daemon configuration.
//
// Values come from three layers, each overriding the previous one:
// built-in defaults, the YAML file, then ODEMIS_* environment variables.
// Secrets (JWT secret, MQTT password, InfluxDB token) are best supplied
// through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Hardware.File)
package config
