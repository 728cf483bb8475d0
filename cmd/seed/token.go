package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kc-steward.io/steward/internal/api/middleware"
	"kc-steward.io/steward/internal/config"
)

// operatorRole is a named permission preset for minted tokens.
type operatorRole struct {
	Name        string
	Description string
	Permissions []string
}

func operatorRoles() []operatorRole {
	return []operatorRole{
		{
			Name:        "viewer",
			Description: "Lists clusters and compares realms",
			Permissions: []string{middleware.PermRealmRead},
		},
		{
			Name:        "syncer",
			Description: "Compares realms and pushes entities into a destination",
			Permissions: []string{middleware.PermRealmRead, middleware.PermRealmSync},
		},
		{
			Name:        "tagger",
			Description: "Compares realms and applies bulk tag plans",
			Permissions: []string{middleware.PermRealmRead, middleware.PermTagsWrite},
		},
		{
			Name:        "admin",
			Description: "Everything, including the runtime log level",
			Permissions: []string{middleware.PermAdmin},
		},
	}
}

func findOperatorRole(name string) (operatorRole, error) {
	names := make([]string, 0, 4)
	for _, r := range operatorRoles() {
		if r.Name == name {
			return r, nil
		}
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return operatorRole{}, fmt.Errorf("unknown role %q (want one of %s)", name, strings.Join(names, ", "))
}

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token signed with security.session_secret",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "operator", "Username carried by the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "viewer", "Permission preset: viewer, syncer, tagger or admin")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	role, err := findOperatorRole(tokenRole)
	if err != nil {
		return err
	}

	token, expiresAt, err := middleware.GenerateToken(middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.SessionSecret),
		Issuer:     cfg.Security.JWTIssuer,
		ExpiresIn:  cfg.Security.TokenLifetime,
	}, uuid.NewString(), tokenUser, []string{role.Name}, role.Permissions)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "role=%s expires=%s\n", role.Name, expiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}
