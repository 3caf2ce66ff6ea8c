// Package config provides a go-simpler.org/env configuration table for the
// relay's startup settings.
//
// Grounded on the teacher's app/config/config.go: the same env-tagged
// struct + go-simpler.org/env + adrg/xdg data-dir resolution technique,
// renamed from ORLY_ to RELAYD_ and trimmed to the fields SPEC_FULL.md §6
// names (no ACL/admin/owner/payment fields — those belong to the teacher's
// own authenticated-session and billing features, out of this spec).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
	lol "lol.mleku.dev"
	"lol.mleku.dev/chk"
)

// C holds the relay's startup configuration, loaded from environment
// variables with sane defaults.
type C struct {
	Listen       string   `env:"RELAYD_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	Port         int      `env:"RELAYD_PORT" default:"3334" usage:"port to listen on"`
	Endpoint     string   `env:"RELAYD_ENDPOINT" default:"/" usage:"websocket upgrade path"`
	DataDir      string   `env:"RELAYD_DATA_DIR" usage:"storage location for the event store" default:"~/.local/share/relayd"`
	MaxSub       int      `env:"RELAYD_MAX_SUB" default:"20" usage:"maximum concurrent subscriptions per connection"`
	EnableEOSE   bool     `env:"RELAYD_ENABLE_EOSE" default:"true" usage:"send an EOSE after backfill for every REQ"`
	Name         string   `env:"RELAYD_NAME" default:"relayd" usage:"relay name reported in the NIP-11 info document"`
	Description  string   `env:"RELAYD_DESCRIPTION" usage:"relay description reported in the NIP-11 info document"`
	Contact      string   `env:"RELAYD_CONTACT" usage:"operator contact reported in the NIP-11 info document"`
	Pubkey       string   `env:"RELAYD_PUBKEY" usage:"relay identity pubkey reported in the NIP-11 info document"`
	IPWhitelist  []string `env:"RELAYD_IP_WHITELIST" usage:"comma-separated list of IP prefixes to allow; empty allows all"`
	BlockedKinds []int    `env:"RELAYD_BLOCKED_KINDS" usage:"comma-separated list of event kinds to reject; empty blocks none"`
	LogLevel     string   `env:"RELAYD_LOG_LEVEL" default:"info" usage:"relay log level: fatal error warn info debug trace"`
	LogToStdout  bool     `env:"RELAYD_LOG_TO_STDOUT" default:"false" usage:"log to stdout instead of stderr"`
}

// New loads configuration from the environment, resolving DataDir via XDG
// when unset, and applying the configured log level, matching the
// teacher's app/config.New.
func New() (*C, error) {
	cfg := &C{}
	if err := env.Load(cfg, &env.Options{SliceSep: ","}); chk.E(err) {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if cfg.DataDir == "" || strings.Contains(cfg.DataDir, "~") {
		cfg.DataDir = filepath.Join(xdg.DataHome, "relayd")
	}
	if cfg.LogToStdout {
		lol.Writer = os.Stdout
	}
	lol.SetLogLevel(cfg.LogLevel)
	return cfg, nil
}
