package main

import (
	"fmt"
	"strings"

	"mindcast/internal/config"
)

// commandContext lazily resolves configuration and the API client shared
// by every subcommand.
type commandContext struct {
	configFlag *string
	serverFlag *string
	jsonFlag   *bool

	cfg        *config.Config
	configPath string
}

func newCommandContext(configFlag, serverFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.configPath = path
	return cfg, nil
}

func (c *commandContext) client() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(*c.serverFlag)
	if baseURL == "" {
		bind := strings.TrimSpace(cfg.Paths.APIBind)
		if bind == "" {
			return nil, fmt.Errorf("no api bind configured; set paths.api_bind or pass --server")
		}
		baseURL = "http://" + bind
	}
	return newAPIClient(baseURL, cfg.Paths.APIToken), nil
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}
