package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PipelineConfig holds operator-tunable pipeline settings. They ship with
// safe defaults and can be overridden by a volume-mounted pipeline.yml.
type PipelineConfig struct {
	WorkerBatchSize       int `mapstructure:"workerBatchSize"`
	WorkerPollSeconds     int `mapstructure:"workerPollSeconds"`
	JobMaxAttempts        int `mapstructure:"jobMaxAttempts"`
	BackoffBaseMinutes    int `mapstructure:"backoffBaseMinutes"`
	ClaimLeaseMinutes     int `mapstructure:"claimLeaseMinutes"`
	MatchWindowDays       int `mapstructure:"matchWindowDays"`
	MatchCandidateLimit   int `mapstructure:"matchCandidateLimit"`
	BackfillLockTTLMin    int `mapstructure:"backfillLockTTLMinutes"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WorkerBatchSize:     25,
		WorkerPollSeconds:   15,
		JobMaxAttempts:      3,
		BackoffBaseMinutes:  1,
		ClaimLeaseMinutes:   10,
		MatchWindowDays:     4,
		MatchCandidateLimit: 5,
		BackfillLockTTLMin:  30,
	}
}

// PipelineConfigHolder serves the current PipelineConfig and hot-reloads it
// when the backing file changes.
type PipelineConfigHolder struct {
	current atomic.Value // holds PipelineConfig
}

func NewPipelineConfigHolder() (*PipelineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pipeline")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/ledgerlink/config")
	v.AddConfigPath("/etc/ledgerlink")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGERLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPipelineConfig()
	v.SetDefault("pipeline.workerBatchSize", defaults.WorkerBatchSize)
	v.SetDefault("pipeline.workerPollSeconds", defaults.WorkerPollSeconds)
	v.SetDefault("pipeline.jobMaxAttempts", defaults.JobMaxAttempts)
	v.SetDefault("pipeline.backoffBaseMinutes", defaults.BackoffBaseMinutes)
	v.SetDefault("pipeline.claimLeaseMinutes", defaults.ClaimLeaseMinutes)
	v.SetDefault("pipeline.matchWindowDays", defaults.MatchWindowDays)
	v.SetDefault("pipeline.matchCandidateLimit", defaults.MatchCandidateLimit)
	v.SetDefault("pipeline.backfillLockTTLMinutes", defaults.BackfillLockTTLMin)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PipelineConfig
	if err := v.UnmarshalKey("pipeline", &cfg); err != nil {
		return nil, err
	}
	if err := validatePipelineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PipelineConfig
		if err := v.UnmarshalKey("pipeline", &updated); err != nil {
			log.Printf("[pipeline-config] reload failed: %v", err)
			return
		}
		if err := validatePipelineConfig(updated); err != nil {
			log.Printf("[pipeline-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pipeline-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPipelineConfigHolder pins the holder to cfg without watching a
// file. Tests and one-shot tools use it.
func NewStaticPipelineConfigHolder(cfg PipelineConfig) *PipelineConfigHolder {
	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PipelineConfigHolder) Get() PipelineConfig {
	return h.current.Load().(PipelineConfig)
}

func validatePipelineConfig(cfg PipelineConfig) error {
	if cfg.WorkerBatchSize <= 0 {
		return errors.New("pipeline.workerBatchSize must be positive")
	}
	if cfg.JobMaxAttempts <= 0 {
		return errors.New("pipeline.jobMaxAttempts must be positive")
	}
	if cfg.BackoffBaseMinutes <= 0 {
		return errors.New("pipeline.backoffBaseMinutes must be positive")
	}
	if cfg.MatchWindowDays <= 0 {
		return errors.New("pipeline.matchWindowDays must be positive")
	}
	if cfg.MatchCandidateLimit <= 0 {
		return errors.New("pipeline.matchCandidateLimit must be positive")
	}
	return nil
}
