package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "WORKBOOK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "WORKBOOK_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "storage.data_dir", typ: kString, env: "WORKBOOK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "WORKBOOK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "backup.dir", typ: kString, env: "WORKBOOK_BACKUP_DIR",
		apply:   func(cfg *Config, v any) { cfg.Backup.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Dir },
	},
	{
		key: "backup.s3_bucket", typ: kString, env: "WORKBOOK_BACKUP_S3_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Backup.S3Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.S3Bucket },
	},
	{
		key: "backup.s3_region", typ: kString, env: "WORKBOOK_BACKUP_S3_REGION",
		apply:   func(cfg *Config, v any) { cfg.Backup.S3Region = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.S3Region },
	},
	{
		key: "backup.s3_endpoint", typ: kString, env: "WORKBOOK_BACKUP_S3_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Backup.S3Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.S3Endpoint },
	},
	{
		key: "backup.s3_path_style", typ: kBool, env: "WORKBOOK_BACKUP_S3_PATH_STYLE",
		apply:   func(cfg *Config, v any) { cfg.Backup.S3PathStyle = v.(bool) },
		extract: func(cfg Config) any { return cfg.Backup.S3PathStyle },
	},
	{
		key: "backup.s3_prefix", typ: kString, env: "WORKBOOK_BACKUP_S3_PREFIX",
		apply:   func(cfg *Config, v any) { cfg.Backup.S3Prefix = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.S3Prefix },
	},
	{
		key: "backup.poll_interval", typ: kString, env: "WORKBOOK_BACKUP_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Backup.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.PollInterval },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
