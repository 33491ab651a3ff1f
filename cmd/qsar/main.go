// Command qsar runs the QSAR workflow: filter, prepare, explore, train,
// predict and serve.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	_ "go.uber.org/automaxprocs"

	"github.com/YuminosukeSato/qsarkit/config"
	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/internal/cli"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
	"github.com/YuminosukeSato/qsarkit/qsar"
	"github.com/YuminosukeSato/qsarkit/server"
)

func main() {
	// Minimal logger until the configuration is read.
	log.SetupSlog(os.Stderr, "info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		slog.Error("qsar failed", log.ErrAttr(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, args []string) error {
	opts, err := cli.Parse(args, out)
	if err != nil || opts == nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	if err := log.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	p, err := qsar.NewPipeline(cfg)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	switch opts.Command {
	case "filter":
		return filter(ctx, p, opts.Output, out)
	case "prepare":
		t, err := p.Filter(ctx)
		if err != nil {
			return err
		}
		ds, err := p.Prepare(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "prepared %s: %d train, %d test\n", ds.Name, len(ds.TrainIndices()), len(ds.TestIndices()))
		return nil
	case "explore":
		ds, err := p.LoadDataset()
		if err != nil {
			return err
		}
		ex, err := p.Explore(ds)
		if err != nil {
			return err
		}
		printExploration(out, ds, ex)
		return nil
	case "train":
		return train(ctx, p, opts.Model, out)
	case "predict":
		m, err := loadModel(cfg, opts.Model)
		if err != nil {
			return err
		}
		smiles := opts.SMILES
		if len(smiles) == 0 {
			smiles = cfg.Predict.SMILES
		}
		preds, err := m.PredictSMILES(ctx, smiles)
		if err != nil {
			return err
		}
		printPredictions(out, m, preds)
		return nil
	case "serve":
		m, err := loadModel(cfg, opts.Model)
		if err != nil {
			return err
		}
		s, err := server.New(m, server.WithRateLimit(cfg.Server.Rate, cfg.Server.Burst))
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if opts.Addr != "" {
			addr = opts.Addr
		}
		return s.ListenAndServe(ctx, addr)
	case "run":
		rep, err := p.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "filtered %d records\n", rep.Filtered)
		printExploration(out, rep.Dataset, rep.Exploration)
		for k, m := range rep.Models {
			printEvaluation(out, m)
			printPredictions(out, m, rep.Predictions[k])
		}
		return nil
	}
	return &cli.ExitError{Code: 2, Message: "unhandled command " + opts.Command}
}

func loadConfig(opts *cli.Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	return cfg, nil
}

func modelConfig(cfg *config.Config, name string) (config.ModelConfig, error) {
	if name == "" {
		if len(cfg.Models) == 0 {
			return config.ModelConfig{}, errors.NewConfigError("model", "no model configured", nil)
		}
		return cfg.Models[0], nil
	}
	mc, ok := cfg.Model(name)
	if !ok {
		return config.ModelConfig{}, &cli.ExitError{Code: 2, Message: fmt.Sprintf("model %q is not configured", name)}
	}
	return mc, nil
}

func loadModel(cfg *config.Config, name string) (*qsar.Model, error) {
	mc, err := modelConfig(cfg, name)
	if err != nil {
		return nil, err
	}
	return qsar.LoadModel(cfg.Storage.Dir, mc.Name)
}

func filter(ctx context.Context, p *qsar.Pipeline, path string, out io.Writer) error {
	t, err := p.Filter(ctx)
	if err != nil {
		return err
	}
	w := out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		defer f.Close()
		w = f
	}
	if err := dataset.WriteTable(w, t); err != nil {
		return err
	}
	log.GetLogger().Info("Filtered table",
		log.AccessionKey, p.Config().Data.Accession,
		log.SamplesKey, t.Len(),
	)
	return nil
}

func train(ctx context.Context, p *qsar.Pipeline, name string, out io.Writer) error {
	ds, err := p.LoadDataset()
	if err != nil {
		return err
	}
	models := p.Config().Models
	if name != "" {
		mc, err := modelConfig(p.Config(), name)
		if err != nil {
			return err
		}
		models = []config.ModelConfig{mc}
	}
	for _, mc := range models {
		m, err := p.Train(ctx, ds, mc)
		if err != nil {
			return errors.Wrapf(err, "model %s", mc.Name)
		}
		printEvaluation(out, m)
	}
	return nil
}

func printExploration(out io.Writer, ds *dataset.Dataset, ex *qsar.Exploration) {
	d := ex.Description
	fmt.Fprintf(out, "%s: n=%d mean=%.3f std=%.3f min=%.2f max=%.2f\n",
		ds.Property, d.Count, d.Mean, d.Std, d.Min, d.Max)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Rank\tID\tSMILES\tValue")
	for _, r := range ex.Top {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", r.Rank, r.Record.ID, r.Record.SMILES, r.Record.Value)
	}
	tw.Flush()
	fmt.Fprintf(out, "%d scaffolds above the minimum count\n", len(ex.Scaffolds))
	for _, g := range ex.Scaffolds {
		label := g.Scaffold
		if label == "" {
			label = "(acyclic)"
		}
		fmt.Fprintf(out, "  %-40s count=%d mean=%.2f\n", label, g.Count, g.Mean)
	}
	if ex.HistogramPlot != "" {
		fmt.Fprintf(out, "histogram: %s\n", ex.HistogramPlot)
	}
}

func printEvaluation(out io.Writer, m *qsar.Model) {
	if m.Eval == nil {
		return
	}
	fmt.Fprintf(out, "%s (%s) params=%v\n", m.Name, m.Algorithm, m.Params)
	fmt.Fprintf(out, "  CV:   R2=%.3f RMSE=%.3f (n=%d)\n", m.Eval.CV.R2, m.Eval.CV.RMSE, m.Eval.CV.N)
	fmt.Fprintf(out, "  Test: R2=%.3f RMSE=%.3f (n=%d)\n", m.Eval.Test.R2, m.Eval.Test.RMSE, m.Eval.Test.N)
}

func printPredictions(out io.Writer, m *qsar.Model, preds []qsar.Prediction) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SMILES\t%s_Prediction\tNote\n", m.Property)
	for _, p := range preds {
		switch {
		case p.Err != nil:
			fmt.Fprintf(tw, "%s\t-\t%v\n", p.SMILES, p.Err)
		case math.IsNaN(p.Value):
			fmt.Fprintf(tw, "%s\t-\t\n", p.SMILES)
		default:
			fmt.Fprintf(tw, "%s\t%.3f\t\n", p.SMILES, p.Value)
		}
	}
	tw.Flush()
}
