// Package cli implements the umzugsync command line on top of a sync session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/auth"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/iocli"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/session"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/config"
)

// BuildInfo версия сборки, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Opener открывает сессию; в тестах подменяется
type Opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, error)

// Cli состояние одного запуска команды
type Cli struct {
	io      iocli.IO
	logger  *slog.Logger
	cfg     *config.Config
	sess    *session.Session
	open    Opener
	info    BuildInfo
	cfgFile string
}

// Option настраивает Cli
type Option func(*Cli)

// WithOpener подменяет сборку сессии
func WithOpener(open Opener) Option {
	return func(c *Cli) {
		c.open = open
	}
}

// WithLogger задает логгер вместо созданного по конфигурации
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cli) {
		c.logger = logger
	}
}

// New создает Cli
func New(io iocli.IO, info BuildInfo, opts ...Option) *Cli {
	c := &Cli{
		io:   io,
		info: info,
		open: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, error) {
			return session.New(ctx, cfg, logger)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command собирает дерево команд
func (c *Cli) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "umzugsync",
		Short: "Real-time sync client for the Umzug backend",
		Long: `umzugsync keeps a local copy of the Umzug collections in sync with the backend.
Mutations are applied optimistically, queued while offline and replayed on reconnect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.loadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.closeSession(cmd.Context())
		},
	}
	root.SetOut(c.io)
	root.SetErr(c.io)
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (YAML); UMZUG_* environment variables take precedence")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.watchCommand(),
		c.mutateCommand(),
		c.listCommand(),
		c.errorsCommand(),
		c.versionCommand(),
	)
	return root
}

// Execute выполняет команду и возвращает код выхода процесса
func Execute(ctx context.Context, info BuildInfo, args []string) int {
	c := New(iocli.NewStdio(), info)
	root := c.Command()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		// PersistentPostRunE не вызывается, если команда вернула ошибку
		_ = c.closeSession(ctx)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *Cli) loadConfig() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if c.logger == nil {
		c.logger = iocli.NewLogger(os.Stderr, cfg.SlogLevel())
	}
	return nil
}

// openSession открывает сессию при первом обращении
func (c *Cli) openSession(ctx context.Context) (*session.Session, error) {
	if c.sess != nil {
		return c.sess, nil
	}
	s, err := c.open(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	c.sess = s
	return s, nil
}

func (c *Cli) closeSession(ctx context.Context) error {
	if c.sess == nil {
		return nil
	}
	s := c.sess
	c.sess = nil
	if err := s.Close(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// connect пытается выйти в сеть. false - работаем офлайн, мутации останутся в очереди.
func (c *Cli) connect(ctx context.Context, s *session.Session) bool {
	err := s.Connect(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, auth.ErrNotAuthenticated) {
		c.io.Println("Not logged in, working offline.")
	} else {
		c.io.Printf("Server unreachable, working offline: %v\n", err)
	}
	s.Disconnect()
	return false
}
