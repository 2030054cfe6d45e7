package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"committeehub/config"
	"committeehub/db"
	"committeehub/internal/logger"
	"committeehub/services"
	"committeehub/utils"

	"github.com/spf13/cobra"
)

var flags struct {
	configPath string
	name       string
	email      string
	password   string
	printToken bool
}

func main() {
	root := &cobra.Command{
		Use:   "adduser",
		Short: "Create a committeehub account",
		Long: "Creates an account in the configured MongoDB database. Committees that " +
			"already list the email as a member are linked the first time the user signs in.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.Flags().StringVar(&flags.configPath, "config", "config/config.prod.yml", "path to config file")
	root.Flags().StringVar(&flags.name, "name", "", "display name (required)")
	root.Flags().StringVar(&flags.email, "email", "", "email address (required)")
	root.Flags().StringVar(&flags.password, "password", "", "password, at least 8 characters (required)")
	root.Flags().BoolVar(&flags.printToken, "print-token", false, "print a session token for the new account")
	for _, name := range []string{"name", "email", "password"} {
		_ = root.MarkFlagRequired(name)
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if len(flags.password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StorageMongo {
		return fmt.Errorf("adduser needs mongo storage, config selects %q", cfg.Storage)
	}
	log := logger.New(cfg.Log)
	utils.SetJWTSecret(cfg.JWT.Secret)
	utils.SetJWTExpiry(cfg.JWT.Expiry)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, database, err := db.ConnectMongoDB(ctx, cfg.Database.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	auth := services.NewAuthService(
		db.NewUserStore(database),
		db.NewCommitteeStore(database),
		db.NewMotionStore(database),
		services.Options{Logger: log},
	)
	session, err := auth.Register(ctx, services.RegisterInput{
		Name:     flags.name,
		Email:    flags.email,
		Password: flags.password,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created user %s <%s> id=%s\n", session.User.Name, session.User.Email, session.User.ID.Hex())
	if flags.printToken {
		fmt.Println(session.Token)
	}
	return nil
}
