package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

var (
	verbose   bool
	asJSON    bool
	actAsUser string
	actAsRole string
	logger    *slog.Logger
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "subpro",
	Short: "subpro - recurring subscription billing",
	Long: `subpro manages recurring product subscriptions and runs the billing
cycle that charges every subscription whose delivery is due.

Commands run as an administrator unless --user-id is given, in which case
they act on behalf of that customer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			logger = slog.Default()
		}
		if app != nil {
			actor, err := actorFromFlags()
			if err != nil {
				return err
			}
			app.Actor = actor
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx := observability.WithCorrelationID(cmd.Context(), info.correlationID.String())
		cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
		logger.Debug("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Debug("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&actAsUser, "user-id", os.Getenv("SUBPRO_USER_ID"), "act on behalf of this customer")
	rootCmd.PersistentFlags().StringVar(&actAsRole, "role", "", "role of the acting principal (user, admin)")
}

func actorFromFlags() (domain.Actor, error) {
	if actAsUser == "" {
		if actAsRole == string(domain.RoleUser) {
			return domain.Actor{}, fmt.Errorf("--role user requires --user-id")
		}
		return domain.SystemActor(), nil
	}
	id, err := uuid.Parse(actAsUser)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid --user-id: %w", err)
	}
	role := domain.RoleUser
	if actAsRole == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verbose
}

// JSONOutput reports whether --json was given.
func JSONOutput() bool {
	return asJSON
}

// SetJSONOutput overrides --json.
func SetJSONOutput(v bool) {
	asJSON = v
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
