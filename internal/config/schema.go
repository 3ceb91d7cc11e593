// Package config defines the configuration schema for dingclaw.
//
// JSON keys use camelCase; the same file may alternatively be written as YAML
// (config.yaml / config.yml) with identical keys.
package config

import (
	"os"
	"path/filepath"
)

// HostConfig points at the host agent framework that generates replies.
type HostConfig struct {
	// Endpoint is the URL the gateway POSTs normalized envelopes to.
	// Empty means echo mode: replies mirror the inbound text.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	// TimeoutSeconds bounds one reply-generation call. Zero means 120.
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

func defaultHostConfig() HostConfig {
	return HostConfig{TimeoutSeconds: 120}
}

// GatewayConfig holds gateway-wide runtime settings.
type GatewayConfig struct {
	BusSize  int    `json:"busSize" yaml:"busSize"`
	MediaDir string `json:"mediaDir" yaml:"mediaDir"`
	// TokenRefreshSchedule is a cron spec for the token keep-warm job.
	TokenRefreshSchedule string `json:"tokenRefreshSchedule" yaml:"tokenRefreshSchedule"`
	// HeartbeatSeconds is the runtime-state watchdog interval. Zero disables it.
	HeartbeatSeconds int `json:"heartbeatSeconds" yaml:"heartbeatSeconds"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BusSize:              100,
		TokenRefreshSchedule: "@every 45m",
		HeartbeatSeconds:     300,
	}
}

// DingTalkConfig configures the DingTalk robot channel (Stream mode).
type DingTalkConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	// RobotCode defaults to ClientID when empty; most robot APIs require it.
	RobotCode string   `json:"robotCode,omitempty" yaml:"robotCode,omitempty"`
	AllowFrom []string `json:"allowFrom" yaml:"allowFrom"`
	// MarkdownReplies sends replies as markdown blocks instead of plain text.
	MarkdownReplies bool `json:"markdownReplies" yaml:"markdownReplies"`
}

// EffectiveRobotCode returns RobotCode, falling back to ClientID.
func (c DingTalkConfig) EffectiveRobotCode() string {
	if c.RobotCode != "" {
		return c.RobotCode
	}
	return c.ClientID
}

func defaultDingTalkConfig() DingTalkConfig {
	return DingTalkConfig{AllowFrom: []string{}}
}

// ChannelsConfig holds per-channel configuration.
type ChannelsConfig struct {
	DingTalk DingTalkConfig `json:"dingtalk" yaml:"dingtalk"`
}

// Config is the root configuration object.
type Config struct {
	Host     HostConfig     `json:"host" yaml:"host"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Host:    defaultHostConfig(),
		Gateway: defaultGatewayConfig(),
		Channels: ChannelsConfig{
			DingTalk: defaultDingTalkConfig(),
		},
	}
}

// MediaPath returns the directory downloaded media is stored in.
func (c *Config) MediaPath() string {
	if c.Gateway.MediaDir != "" {
		return expandHome(c.Gateway.MediaDir)
	}
	return filepath.Join(DataDir(), "media")
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
