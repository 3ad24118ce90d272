package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"deadwax/internal/audit"
	"deadwax/internal/backup"
	"deadwax/internal/blobstore"
	"deadwax/internal/catalog"
	"deadwax/internal/config"
	"deadwax/internal/exchange"
	"deadwax/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds a file-only logger; stdout stays reserved for command
// output. Old log files are pruned on first use, audit log excluded.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logPath := filepath.Join(cfg.Paths.LogDir, logging.AppLogFileName)
		logger, err := logging.New(logging.Options{
			Level:            cfg.Logging.Level,
			Format:           cfg.Logging.Format,
			OutputPaths:      []string{logPath},
			ErrorOutputPaths: []string{logPath},
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{cfg.AuditLogPath()},
		})
	})
	return c.logger, c.loggerErr
}

// session bundles the open handles one command invocation works with.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	audit  *audit.Log
	store  *catalog.Store
}

// withInstallation runs fn with config, logger, and audit log ready but no
// store open. Restore and backup maintenance use this.
func (c *commandContext) withInstallation(fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	auditLog, err := audit.Open(cfg.AuditLogPath())
	if err != nil {
		return err
	}
	defer auditLog.Close()
	return fn(&session{cfg: cfg, logger: logger, audit: auditLog})
}

// withStore runs fn with the catalog store open on top of an installation
// session. Stale restore staging is discarded before the store opens.
func (c *commandContext) withStore(fn func(*session) error) error {
	return c.withInstallation(func(s *session) error {
		if _, err := backup.DiscardStaging(s.cfg, s.logger); err != nil {
			return err
		}
		store, err := catalog.Open(s.cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		store.AttachAudit(s.audit)
		store.AttachLogger(s.logger)
		s.store = store
		return fn(s)
	})
}

func (s *session) blobs() (*blobstore.Store, error) {
	return blobstore.New(s.cfg.Paths.BlobDir)
}

func (s *session) backups() *backup.Manager {
	return backup.New(s.cfg, s.logger, s.audit)
}

func (s *session) pipeline() *exchange.Pipeline {
	return exchange.New(s.store, s.logger, s.audit)
}

// targetProfile resolves the profile a command operates on: an explicit
// --profile override or the active profile.
func targetProfile(cmd *cobra.Command, store *catalog.Store, override string) (*catalog.Profile, error) {
	if name := strings.TrimSpace(override); name != "" {
		return store.ProfileByName(cmd.Context(), name)
	}
	return store.ActiveProfile(cmd.Context())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
