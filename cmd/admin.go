package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/db"
	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/server/forms"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var ErrUsernameTaken = errors.New("a user with that username already exists")

func newUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE:  runUserCreate,
	}
	createCmd.Flags().String("username", "", "Username")
	createCmd.Flags().String("password", "", "Password")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func newAppCommand() *cobra.Command {
	appCmd := &cobra.Command{
		Use:   "app",
		Short: "Manage the application catalog",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Add an application",
		Args:  cobra.NoArgs,
		RunE:  runAppCreate,
	}
	createCmd.Flags().String("name", "", "Application name")
	createCmd.Flags().String("company", "", "Company that makes the application")
	_ = createCmd.MarkFlagRequired("name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List applications and their known versions",
		Args:  cobra.NoArgs,
		RunE:  runAppList,
	}

	appCmd.AddCommand(createCmd, listCmd)
	return appCmd
}

func openDB(cmd *cobra.Command) (*gorm.DB, error) {
	config, err := config.LoadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateDatabase(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return db.MakeDB(config)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	form := forms.RegisterForm{}
	errs := forms.Bind(map[string][]string{
		"username":     {username},
		"password":     {password},
		"confirmation": {password},
	}, &form)
	if len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, msg := range errs {
			messages = append(messages, msg)
		}
		sort.Strings(messages)
		return fmt.Errorf("invalid user: %s", strings.Join(messages, "; "))
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer closeDB(db)

	exists, err := models.UsernameExists(db, form.Username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return ErrUsernameTaken
	}

	user, err := models.CreateUser(db, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func runAppCreate(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	company, _ := cmd.Flags().GetString("company")
	name = strings.TrimSpace(name)
	company = strings.TrimSpace(company)
	if name == "" {
		return errors.New("application name is required")
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer closeDB(db)

	app, err := models.CreateApplication(db, name, company)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("application %q already exists", name)
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created application %s (id %d)\n", app, app.ID)
	return nil
}

func runAppList(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer closeDB(db)

	apps, err := models.ListApplicationsWithVersions(db)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, app := range apps {
		fmt.Fprintf(out, "%d\t%s\n", app.ID, app)
		for _, version := range app.Versions {
			fmt.Fprintf(out, "\t%s\n", version)
		}
	}
	return nil
}
