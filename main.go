// @title CommSense API
// @version 1.0
// @description Interview practice backend: speech feedback, gesture analysis and assessment reports.

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"commsense_backend/internal/app"
	"commsense_backend/internal/config"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/report"
	"commsense_backend/internal/service"
	"commsense_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configDir string

func main() {
	root := &cobra.Command{
		Use:           "commsense",
		Short:         "CommSense interview practice backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configDir, "config", "configs", "directory containing config.yaml")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP server", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update database tables and exit", RunE: runMigrate},
		analyzeVideoCmd(),
		renderReportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := app.NewServer(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()
	return application.Run()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.DB.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Log.Info("Database migration finished")
	return nil
}

func analyzeVideoCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "analyze-video",
		Short: "Run gesture analysis on a local video and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.InitLogger(cfg)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			profile, err := gesture.LoadProfile(cfg.Gesture.ProfilePath)
			if err != nil {
				logger.Log.Warn("Using default analysis profile", zap.Error(err))
				profile = gesture.DefaultProfile()
			}

			vx, err := service.NewVisionExtractor(ctx, cfg.GCP)
			if err != nil {
				return fmt.Errorf("init extractor: %w", err)
			}
			defer vx.Close()

			// Offline analysis touches neither the database nor the generator.
			svc := service.NewAnswerService(nil, nil, nil, service.NewMediaService(), nil, vx, nil,
				gesture.NewProfileStore(profile), cfg)
			result, err := svc.AnalyzeVideo(ctx, file)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "video file to analyze")
	cmd.MarkFlagRequired("file")
	return cmd
}

func renderReportCmd() *cobra.Command {
	var in, out string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "render-report",
		Short: "Render a PDF report from a JSON document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var doc report.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", in, err)
			}

			var opts []report.Option
			if verbose {
				opts = append(opts, report.WithProgress(func(section string) error {
					fmt.Fprintln(cmd.ErrOrStderr(), "rendering", section)
					return nil
				}))
			}
			renderer, err := report.NewRenderer(opts...)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			stats, err := renderer.Render(cmd.Context(), doc, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(out)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d pages, %d charts, %d questions\n",
				out, stats.Pages, stats.Charts, stats.QuestionBlocks)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "JSON report document")
	cmd.Flags().StringVar(&out, "out", "report.pdf", "output PDF path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each section as it is laid out")
	cmd.MarkFlagRequired("in")
	return cmd
}
