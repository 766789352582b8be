// Package config provides configuration loading for steward.
//
// Configuration is assembled from three layers, highest precedence first:
//
//  1. Environment variables with the STEWARD_ prefix
//     (STEWARD_LLM_BASE_URL -> llm.base_url)
//  2. A YAML config file (~/.config/steward/config.yaml by default)
//  3. Hardcoded defaults
//
// The loader enforces restrictive file permissions (0600/0400), an allowed-
// directory list, and a size cap on the config file. Secrets unmarshal from
// raw values but always marshal redacted; see the Secret type.
//
// # Example
//
//	cfg, err := config.LoadWithFile("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Supervision.HeartbeatInterval.Duration())
package config
