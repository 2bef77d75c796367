package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/distributed-ci/dci-server/internal/model"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamListCmd())

	return cmd
}

func newTeamCreateCmd() *cobra.Command {
	var (
		name    string
		country string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new team",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore()
			if err != nil {
				return err
			}
			defer st.Close()

			team := model.Team{Name: name, Country: country}
			if err := st.CreateTeam(context.Background(), &team); err != nil {
				return fmt.Errorf("create team: %w", err)
			}

			fmt.Printf("Created team %q (id %s)\n", name, team.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Team name (required)")
	cmd.Flags().StringVar(&country, "country", "", "Country code")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newTeamListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore()
			if err != nil {
				return err
			}
			defer st.Close()

			teams, err := st.ListTeams(context.Background())
			if err != nil {
				return fmt.Errorf("list teams: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(teams)
			}

			if len(teams) == 0 {
				fmt.Println("No teams. Use 'dci-server team create' to create one.")
				return nil
			}

			fmt.Printf("%-36s %-20s %s\n", "ID", "NAME", "COUNTRY")
			for _, t := range teams {
				fmt.Printf("%-36s %-20s %s\n", t.ID, t.Name, t.Country)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
