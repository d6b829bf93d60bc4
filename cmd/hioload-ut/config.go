// File: cmd/hioload-ut/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/pool"
	"github.com/spf13/cobra"
)

// fileConfig mirrors the TOML config file. Flags override it.
type fileConfig struct {
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Engine struct {
		BufferSize int    `toml:"buffer_size"`
		MaxSockets int    `toml:"max_sockets"`
		MaxWaiters int    `toml:"max_waiters"`
		Codec      string `toml:"codec"`
		MaxPacket  int    `toml:"max_packet"`
		CPU        int    `toml:"cpu"`
	} `toml:"engine"`
	Reactor struct {
		MaxEvents int `toml:"max_events"`
		Backlog   int `toml:"backlog"`
	} `toml:"reactor"`
	Stats struct {
		Interval string `toml:"interval"`
	} `toml:"stats"`
}

func defaultFileConfig() fileConfig {
	var cfg fileConfig
	cfg.Log.Level = "info"
	cfg.Engine.BufferSize = 4096
	cfg.Engine.Codec = "length"
	cfg.Engine.CPU = -1
	cfg.Stats.Interval = "0s"
	return cfg
}

// loadConfig reads the optional config file and applies persistent flags.
func loadConfig(cmd *cobra.Command) (fileConfig, error) {
	cfg := defaultFileConfig()
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if codec, _ := cmd.Flags().GetString("codec"); codec != "" {
		cfg.Engine.Codec = codec
	}
	if cmd.Flags().Changed("cpu") {
		cfg.Engine.CPU, _ = cmd.Flags().GetInt("cpu")
	}
	if _, err := newDecoderFactory(cfg.Engine.Codec, nil, 0); err != nil {
		return cfg, err
	}
	setupColor(cmd)
	return cfg, nil
}

func (c fileConfig) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newDecoderFactory maps a codec name onto a decoder constructor.
func newDecoderFactory(name string, pp *pool.PacketPool, maxPacket int) (func() api.Decoder, error) {
	switch strings.ToLower(name) {
	case "", "length":
		return func() api.Decoder { return protocol.NewLengthPrefixed(pp, maxPacket) }, nil
	case "frame":
		return func() api.Decoder { return protocol.NewFrame(pp, maxPacket) }, nil
	case "raw":
		return func() api.Decoder { return protocol.NewRaw(pp, maxPacket) }, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want length, frame or raw)", name)
	}
}

// parseAddr accepts host:port for TCP and unix:/path for unix sockets.
func parseAddr(s string) api.Address {
	if rest, ok := strings.CutPrefix(s, "unix:"); ok {
		return api.Address{Network: api.NetworkUNIX, Address: rest}
	}
	return api.TCP(s)
}
