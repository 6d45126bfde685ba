package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/log"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/server"
	"github.com/devsapp/serverless-automl-hub/pkg/training"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const shutdownTimeout = 5 * time.Second // 5s

var (
	configFile string

	servePort   string
	serveDbType string
	serveMode   string

	trainFile    string
	trainProblem string
	trainParams  string
)

var rootCmd = &cobra.Command{
	Use:           "hub",
	Short:         "AutoML analytics hub: dataset profiling, charts and model training",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		return config.InitConfig(configFile)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the http api and the training workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		if f.Changed("port") {
			config.ConfigGlobal.Port = servePort
		}
		if f.Changed("dbType") {
			config.ConfigGlobal.DbType = serveDbType
		}
		if f.Changed("mode") {
			config.ConfigGlobal.Mode = serveMode
		}
		logInit(config.ConfigGlobal.Mode)

		// init server and start
		hub, err := server.NewHubServer(config.ConfigGlobal.Port,
			datastore.DatastoreType(config.ConfigGlobal.DbType), config.ConfigGlobal.Mode)
		if err != nil {
			return fmt.Errorf("hub server init fail: %w", err)
		}
		go hub.Start()
		logrus.Infof("hub listening on :%s", config.ConfigGlobal.Port)

		// wait shutdown signal
		handleSignal()

		if err := hub.Close(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown server fail: %w", err)
		}
		logrus.Info("Server exiting")
		return nil
	},
}

type trainOutput struct {
	ProblemType   string             `json:"problemType"`
	Configuration models.ModelConfig `json:"configuration"`
	Metrics       map[string]float64 `json:"metrics"`
	Results       interface{}        `json:"results"`
	DurationMs    int64              `json:"durationMs"`
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model on a local csv, json or xlsx file and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		logInit(config.ConfigGlobal.Mode)
		trainer, ok := training.Trainers()[trainProblem]
		if !ok {
			return fmt.Errorf("%w: %s", training.ErrUnsupported, trainProblem)
		}
		cfg := new(models.ModelConfig)
		if trainParams != "" {
			if err := json.Unmarshal([]byte(trainParams), cfg); err != nil {
				return fmt.Errorf("parse --params: %w", err)
			}
		}
		data, err := os.ReadFile(trainFile)
		if err != nil {
			return err
		}
		table, err := dataset.Parse(filepath.Base(trainFile), "", data)
		if err != nil {
			return err
		}
		if err := trainer.Validate(cfg, table); err != nil {
			return err
		}
		start := time.Now()
		out, err := trainer.Train(cmd.Context(), table, cfg)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(&trainOutput{
			ProblemType:   trainProblem,
			Configuration: *cfg,
			Metrics:       out.Metrics,
			Results:       out.Results,
			DurationMs:    time.Since(start).Milliseconds(),
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration, secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(config.ConfigGlobal.Masked())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "yaml config path, AUTOML_ env vars override it")

	serveCmd.Flags().StringVar(&servePort, "port", "8000", "server listen port")
	serveCmd.Flags().StringVar(&serveDbType, "dbType", string(datastore.SQLite), "db type sqlite|tableStore|postgres")
	serveCmd.Flags().StringVar(&serveMode, "mode", "dev", "service mode debug|dev|product")

	trainCmd.Flags().StringVar(&trainFile, "file", "", "dataset file")
	trainCmd.Flags().StringVar(&trainProblem, "problem", config.REGRESSION,
		"classification|regression|clustering|forecasting|recommendation")
	trainCmd.Flags().StringVar(&trainParams, "params", "", "model configuration json")
	trainCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd, trainCmd, configCmd)
}

func handleSignal() {
	// Wait for interrupt signal to gracefully shutdown the server with
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")
}

func logInit(mode string) {
	log.Init(mode)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
