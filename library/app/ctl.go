package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/queue"
	"github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/library/internal/service"
	"github.com/Astemirdum/lending-service/pkg/logger"
)

// ctl holds what every subcommand needs. Only the storage, log and reservation
// sections are read, so no signing secret is required here.
type ctl struct {
	cfg     config.Config
	log     *zap.Logger
	timeout time.Duration
}

// NewCtlCommand builds the libraryctl command tree.
func NewCtlCommand() *cobra.Command {
	c := &ctl{}
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Administrative tasks for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "load .env")
			}
			for _, section := range []any{&c.cfg.Storage, &c.cfg.Log, &c.cfg.Reservation} {
				if err := envconfig.Process("", section); err != nil {
					return errors.Wrap(err, "read config")
				}
			}
			if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
				c.cfg.Storage.Driver = driver
			}
			c.log = logger.NewLogger(c.cfg.Log, "libraryctl")
			return nil
		},
	}
	root.PersistentFlags().String("driver", "", "storage driver override (postgres|mongo)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "overall deadline")

	root.AddCommand(c.migrateCmd(), c.grantCmd())
	return root
}

func (c *ctl) openRepository(ctx context.Context) (*repository.Repository, error) {
	return repository.NewRepository(ctx, c.cfg.Storage, c.log)
}

func (c *ctl) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations (postgres) or create indexes (mongo)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			repo, err := c.openRepository(ctx)
			if err != nil {
				return err
			}
			repo.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s storage is up to date\n", c.cfg.Storage.Driver)
			return nil
		},
	}
}

func (c *ctl) grantCmd() *cobra.Command {
	var (
		email string
		perms []string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant permissions to a user",
		Long: "Grant permissions to a user identified by email. Known permissions: " +
			strings.Join(permissionNames(), ", "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			granted := make([]model.Permission, 0, len(perms))
			for _, p := range perms {
				perm, err := model.ParsePermission(strings.ToUpper(strings.TrimSpace(p)))
				if err != nil {
					return err
				}
				granted = append(granted, perm)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			repo, err := c.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			svc := service.NewService(repo, nil, queue.NewNopPublisher(c.log), &c.cfg, c.log)
			user, err := svc.GrantPermissions(ctx, email, granted...)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(user.Permissions))
			for p := range user.Permissions.Granted() {
				names = append(names, string(p))
			}
			sort.Strings(names)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", user.Email, user.ID, strings.Join(names, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringSliceVar(&perms, "perm", nil, "permission to grant, repeatable")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("perm")
	return cmd
}

func permissionNames() []string {
	names := make([]string, 0, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		names = append(names, string(p))
	}
	return names
}
