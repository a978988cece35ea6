// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the job configuration. The configuration is built
// once at startup and passed explicitly; nothing here is process-global.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultChunkSizeBytes = 10 * 1024 * 1024

// Config holds everything one job run needs.
type Config struct {
	// InputPath is the line-oriented log file to convert. It must exist
	// and be stable for the duration of the job.
	InputPath string `mapstructure:"input"`
	// OutputDir receives one artifact per non-empty partition. Created if
	// missing.
	OutputDir string `mapstructure:"output_dir"`
	// ChunkSizeBytes is the target partition size before the boundary is
	// snapped forward to the next newline.
	ChunkSizeBytes int64 `mapstructure:"chunk_size"`
	// Parallelism caps simultaneously executing partition tasks. Zero
	// means the host core count.
	Parallelism int `mapstructure:"parallelism"`
	// TaskTimeout bounds a single partition task when positive; an
	// expired task becomes a Failure outcome. Zero disables the bound.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// NarrowFields are record fields stored as 16-bit integer columns
	// instead of strings.
	NarrowFields []string `mapstructure:"narrow_fields"`
}

func defaultConfig() *Config {
	return &Config{
		ChunkSizeBytes: defaultChunkSizeBytes,
		Parallelism:    runtime.NumCPU(),
		NarrowFields:   []string{"status"},
	}
}

// Load reads configuration from an optional config file and environment
// variables. Environment variables use the prefix "LOGCHOPPER" and dots in
// keys become underscores, so "output_dir" is "LOGCHOPPER_OUTPUT_DIR".
func Load() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName("logchopper")
	v.AddConfigPath(".")
	v.SetEnvPrefix("LOGCHOPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would make the job misbehave. All
// violations here are fatal before any partitioning or dispatch happens.
func (c *Config) Validate() error {
	var errs []error
	if c.InputPath == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.ChunkSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSizeBytes))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism))
	}
	if c.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("task timeout must not be negative, got %s", c.TaskTimeout))
	}
	return errors.Join(errs...)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := strings.Join(append(parts, tag), ".")
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Addr().Interface(), append(parts, tag)...)
			continue
		}
		_ = v.BindEnv(key)
	}
}
