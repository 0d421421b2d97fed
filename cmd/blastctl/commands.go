package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/blast-desk/internal/campaign"
	"github.com/LeventeLantos/blast-desk/internal/config"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

// store is an open connection to the campaign database.
type store struct {
	svc     *campaign.Service
	migrate func(context.Context) error
	close   func() error
}

type openStore func(ctx context.Context) (*store, error)

func postgresStore(ctx context.Context) (*store, error) {
	cfg, err := config.LoadStore()
	if err != nil {
		return nil, err
	}
	db, err := repo.Open(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return nil, err
	}
	return &store{
		svc: campaign.NewService(campaign.NewPostgresStore(db), campaign.Options{
			DefaultCountry: cfg.Campaign.DefaultCountry,
		}),
		migrate: func(ctx context.Context) error { return repo.Migrate(ctx, db) },
		close:   db.Close,
	}, nil
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(postgresStore)
}

func newRootCmdWith(open openStore) *cobra.Command {
	root := &cobra.Command{
		Use:           "blastctl",
		Short:         "Operator tooling for the blast desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(open),
		newImportContactsCmd(open),
		newExportContactsCmd(open),
	)
	return root
}

func newMigrateCmd(open openStore) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newImportContactsCmd(open openStore) *cobra.Command {
	return &cobra.Command{
		Use:   "import-contacts <file.csv|->",
		Short: "Import contacts from a CSV file with a phone column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			st, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			res, err := st.svc.ImportContacts(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported=%d skipped=%d invalid=%d\n", res.Imported, res.Skipped, res.Invalid)
			return nil
		},
	}
}

func newExportContactsCmd(open openStore) *cobra.Command {
	var (
		q   campaign.ContactQuery
		out string
	)
	cmd := &cobra.Command{
		Use:   "export-contacts",
		Short: "Write contacts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			var dst io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}
			return st.svc.ExportContacts(cmd.Context(), q, dst)
		},
	}
	cmd.Flags().StringVar(&q.PhoneContains, "phone", "", "only numbers containing this text")
	cmd.Flags().StringVar(&q.From, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&q.To, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
