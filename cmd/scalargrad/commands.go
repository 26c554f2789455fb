package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"scalar-autograd/server"
	"scalar-autograd/train"
)

type rootOptions struct {
	logLevel string
}

type trainOptions struct {
	configPath   string
	epochs       int
	learningRate float64
	optimizer    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "scalargrad",
		Short:         "Train tiny MLPs with a scalar reverse-mode autodiff engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newTrainCmd(), newServeCmd())
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an MLP on the configured dataset and print its predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveTrainConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runTrain(cmd.Context(), cmd, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML training config (defaults are used when empty)")
	f.IntVar(&opts.epochs, "epochs", 0, "override the number of epochs")
	f.Float64Var(&opts.learningRate, "lr", 0, "override the learning rate")
	f.StringVar(&opts.optimizer, "optimizer", "", "override the optimizer (sgd or adam)")
	return cmd
}

// resolveTrainConfig loads the config file, then applies flags the user set.
func resolveTrainConfig(cmd *cobra.Command, opts *trainOptions) (train.Config, error) {
	cfg := train.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := train.LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Epochs = opts.epochs
	}
	if cmd.Flags().Changed("lr") {
		cfg.LearningRate = opts.learningRate
	}
	if cmd.Flags().Changed("optimizer") {
		cfg.Optimizer = opts.optimizer
	}
	return cfg, cfg.Validate()
}

func runTrain(ctx context.Context, cmd *cobra.Command, cfg train.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := train.NewTrainerFromConfig(cfg)
	if err != nil {
		return err
	}
	slog.Info("training", "model", t.Model().String(), "params", len(t.Model().Parameters()), "epochs", cfg.Epochs)

	res, err := t.Run(ctx, cfg.Epochs, cfg.Dataset)
	if err != nil {
		return err
	}

	preds, err := t.Predict(cfg.Dataset.Inputs)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "final loss: %.6f after %d epochs\n", res.Loss, t.Epoch())
	for i, p := range preds {
		fmt.Fprintf(out, "  %v -> %.4f (target %.4f)\n", cfg.Dataset.Inputs[i], p, cfg.Dataset.Targets[i])
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the training API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewServer(slog.Default()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
