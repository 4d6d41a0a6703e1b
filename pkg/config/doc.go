// Package config builds client configurations and looks up API keys.
//
// A Provider answers lookups by name, such as "ANTHROPIC_API_KEY", from
// three layers. The process environment wins over an optional config file
// (YAML, JSON or TOML, read with viper), which wins over optional .env files
// (read with godotenv, without touching the process environment).
//
// Provider implements llm.KeyProvider, so it can be handed to adapters and
// to the factory:
//
//	keys, err := config.Load(config.WithDotEnv(".env"), config.WithConfigFile("llm.yaml"))
//	if err != nil {
//	    return err
//	}
//	cfg, err := keys.ClientConfig("llm")
//	if err != nil {
//	    return err
//	}
//	client, err := factory.New(factory.WithKeys(keys)).CreateClient(cfg)
//
// A section such as "llm" holds provider, model, api_key, base_url, timeout,
// max_retries, max_tokens and extra. Each of them can be overridden from the
// environment as SECTION_FIELD, for example LLM_MODEL.
package config
