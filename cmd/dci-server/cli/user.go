package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list user accounts directly against the store, without going through the API.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		name     string
		email    string
		password string
		role     string
		teamID   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Example: `  dci-server user create --name admin --role SUPER_ADMIN
  dci-server user create --name jdoe --email jdoe@example.com --team <team-id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(name, email, password, role, teamID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Login name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", model.RoleUser, "Role label (SUPER_ADMIN, PRODUCT_OWNER, ADMIN, USER)")
	cmd.Flags().StringVar(&teamID, "team", "", "Team id")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runUserCreate(name, email, password, role, teamID string) error {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openCLIStore()
	if err != nil {
		return err
	}
	defer st.Close()

	roleID, err := st.RoleID(strings.ToUpper(role))
	if err != nil {
		return fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       roleID,
	}
	if teamID != "" {
		user.TeamID = &teamID
	}
	if err := st.CreateUser(context.Background(), &user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created user %q (id %s, role %s)\n", name, user.ID, strings.ToUpper(role))
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openCLIStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No users. Use 'dci-server user create' to create one.")
		return nil
	}

	fmt.Printf("%-36s %-20s %-14s %s\n", "ID", "NAME", "ROLE", "EMAIL")
	for _, u := range users {
		fmt.Printf("%-36s %-20s %-14s %s\n", u.ID, u.Name, u.RoleLabel, u.Email)
	}
	return nil
}

// openCLIStore opens the same SQLite store the serve command uses.
func openCLIStore() (*store.Store, error) {
	dir := dataDir
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = home + "/.dci-server"
	}
	return store.New(dir)
}
