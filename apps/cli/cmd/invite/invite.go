package invite

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	invitesrepo "github.com/homebasehq/homebase/domains/invites/be/repo"
	invitesservice "github.com/homebasehq/homebase/domains/invites/be/service"
	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Command groups signature invite helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Signature invite utilities (create, list)",
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	cmd.PersistentFlags().String("manager-id", "", "Manager acting on the invite (owner of the lease)")
	_ = cmd.MarkPersistentFlagRequired("database-url")
	_ = cmd.MarkPersistentFlagRequired("manager-id")

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		email   string
		leaseID string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a signature invite and print its token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			svc, cleanup, managerID, err := newInviteService(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			input := invitesservice.CreateInput{Email: email, TTL: ttl}
			if leaseID != "" {
				parsed, parseErr := uuid.Parse(leaseID)
				if parseErr != nil {
					return fmt.Errorf("invalid lease-id uuid: %w", parseErr)
				}
				input.LeaseID = &parsed
			}

			created, err := svc.Create(ctx, managerID, input)
			if err != nil {
				return fmt.Errorf("create invite: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Invite %s created for %s (expires %s)\n",
				created.InviteID, created.Email, created.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintln(cmd.OutOrStdout(), created.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Recipient email")
	cmd.Flags().StringVar(&leaseID, "lease-id", "", "Lease the invite is scoped to (optional)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Invite lifetime (default 14 days when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func listCommand() *cobra.Command {
	var leaseID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invites issued for a lease",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			svc, cleanup, managerID, err := newInviteService(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			parsed, err := uuid.Parse(leaseID)
			if err != nil {
				return fmt.Errorf("invalid lease-id uuid: %w", err)
			}

			invites, err := svc.ListByLease(ctx, managerID, parsed)
			if err != nil {
				return fmt.Errorf("list invites: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tACCEPTED\tEXPIRES")
			for _, inv := range invites {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n",
					inv.InviteID, inv.Email, inv.Accepted, inv.ExpiresAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&leaseID, "lease-id", "", "Lease whose invites to list")
	_ = cmd.MarkFlagRequired("lease-id")

	return cmd
}

func newInviteService(ctx context.Context, cmd *cobra.Command) (invitesservice.Service, func(), string, error) {
	databaseURL, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return nil, nil, "", err
	}
	managerID, err := cmd.Flags().GetString("manager-id")
	if err != nil {
		return nil, nil, "", err
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, "", fmt.Errorf("init pool: %w", err)
	}

	cleanup := func() { persistence.ClosePool(pool) }

	inviteStore, err := persistence.NewInviteStore(pool)
	if err != nil {
		cleanup()
		return nil, nil, "", fmt.Errorf("init invite store: %w", err)
	}
	leaseStore, err := persistence.NewLeaseStore(pool)
	if err != nil {
		cleanup()
		return nil, nil, "", fmt.Errorf("init lease store: %w", err)
	}
	propertyStore, err := persistence.NewPropertyStore(pool)
	if err != nil {
		cleanup()
		return nil, nil, "", fmt.Errorf("init property store: %w", err)
	}

	svc := invitesservice.New(invitesrepo.NewPostgresRepository(inviteStore, leaseStore, propertyStore))
	return svc, cleanup, managerID, nil
}
