package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockwise/internal/infrastructure/mysql"
	"stockwise/internal/order/listener"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the sweep scheduler and the order event listener.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			dir, _ := cmd.Flags().GetString("dir")
			if err := mysql.Migrate(a.cfg.Database, "file://"+dir, a.logger); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}

		srv := a.httpServer()
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		go func() {
			if err := a.sweeper.Run(ctx); err != nil {
				a.logger.Error("sweep scheduler stopped", zap.Error(err))
			}
		}()

		if len(a.cfg.Kafka.Brokers) > 0 {
			reader := listener.NewKafkaReader(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID)
			defer reader.Close()
			go listener.NewOrderEventListener(reader, a.orders.UseCase, a.logger).Start(ctx)
		} else {
			a.logger.Info("kafka brokers not configured, order event listener disabled")
		}

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			a.logger.Info("received shutdown signal")
		}

		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		a.logger.Info("server stopped gracefully")
		return nil
	},
}
