// Command rbeval evaluates certified reduced basis models from the command
// line: it inspects offline bundles, runs online solves and sweeps, plots
// error-bound convergence and builds a demo model.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
	"github.com/CK6170/rbeval-go/ui"
)

// App version variables. Set these at build time with -ldflags if desired.
var (
	AppVersion = "dev"
	AppBuild   = "local"
)

// --- Global Command Variables ---
var (
	configPath string
	debugFlag  bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:     "rbeval",
		Short:   "Online evaluation of certified reduced basis models",
		Version: fmt.Sprintf("%s [build %s]", AppVersion, AppBuild),
		Long: `rbeval loads the offline data of a reduced basis model and evaluates
the reduced solution, its outputs and a-posteriori error bounds for any
parameter in the model's domain.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rbeval.yaml", "model config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "print debug output and write a _debug.csv next to the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	rootCmd.AddCommand(infoCmd, solveCmd, sweepCmd, plotCmd, latexCmd, demoCmd)
}

func main() {
	log.SetFlags(0)
	log.SetOutput(ui.NewRedWriter(os.Stderr))
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// loadedModel is what every model command works with.
type loadedModel struct {
	cfg    *file.Config
	eval   *rb.Evaluation
	logger *slog.Logger
}

func (m *loadedModel) debug() bool { return debugFlag || m.cfg.DEBUG }

func loadModel() (*loadedModel, error) {
	cfg, err := file.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := ui.NewLogger(level)
	e, err := file.OpenModel(cfg, logger)
	if err != nil {
		return nil, err
	}
	ui.Debugf(debugFlag || cfg.DEBUG, "model %s loaded from %s (%d basis functions)\n", cfg.Name, cfg.Bundle.Dir, e.NBasisFunctions())
	return &loadedModel{cfg: cfg, eval: e, logger: logger}, nil
}

// resolveN maps the --n flag to a basis count; negative means all.
func (m *loadedModel) resolveN(n int) int {
	if n < 0 {
		return m.eval.NBasisFunctions()
	}
	return n
}

func parseMu(s string) (theta.Parameters, error) {
	mu, err := theta.ParseParameters(s)
	if err != nil {
		return nil, fmt.Errorf("--mu: %w", err)
	}
	return mu, nil
}

func paramNames(e *rb.Evaluation) []string {
	var names []string
	for _, r := range e.Ranges() {
		names = append(names, r.Name)
	}
	return names
}

func debugFile() string {
	return strings.TrimSuffix(configPath, ".yaml") + "_debug.csv"
}
