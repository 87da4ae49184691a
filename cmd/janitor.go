package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"kwadrop/config"
	"kwadrop/core/janitor"
	"kwadrop/db"
	"kwadrop/logger"
	"kwadrop/repository"
	"kwadrop/storage"
)

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Run a single orphaned avatar sweep",
	Long:  `Scan avatar storage and remove objects no user references anymore.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
		})

		if err := storage.InitMinio(); err != nil {
			return err
		}
		if err := db.ConnectDB(cfg); err != nil {
			return err
		}
		defer db.DB.Close()

		users := repository.NewMySQLUserRepository()
		sweeper := janitor.New(users, storage.NewAvatarStore(), janitor.DefaultInterval)
		return sweeper.Sweep(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(janitorCmd)
}
