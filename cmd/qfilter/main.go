package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qfilter"
)

var (
	v       = viper.New()
	cfgFile string
	pixels  []int
	outFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qfilter",
		Short:         "NEQR encoding and quantum frequency filtering of a 2x2 image",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				return v.ReadInConfig()
			}
			return nil
		},
	}

	qfilter.SetDefaults(v)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file")
	flags.IntSliceVar(&pixels, "pixels", []int{0, 100, 200, 255}, "pixel values for positions 00,01,10,11")
	flags.StringVar(&outFile, "out", "", "write the result as msgpack to this file")
	flags.Int("shots", qfilter.DefaultShots, "number of measurement shots")
	flags.Uint64("seed", 1, "simulator seed")
	flags.String("normalization", "group", "reconstruction denominator: group or pixel")
	flags.Bool("hardware", false, "run on the remote hardware service")
	flags.String("hardware-url", "", "hardware service base URL")
	flags.String("hardware-device", "", "hardware device, least busy when empty")
	flags.Bool("debug", false, "dump raw histograms to the debug log")

	bind := map[string]string{
		"shots":           "shots",
		"seed":            "seed",
		"normalization":   "normalization",
		"hardware":        "hardware.enabled",
		"hardware-url":    "hardware.url",
		"hardware-device": "hardware.device",
		"debug":           "debug",
	}
	for flag, key := range bind {
		errnie.Debug("binding --%s to %s", flag, key)
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(runCmd(), negativeCmd(), qasmCmd())
	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter the image in the frequency domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, img, err := setup()
			if err != nil {
				return err
			}

			filters, err := parseFilters(v.GetStringSlice("filters"))
			if err != nil {
				return err
			}
			if len(filters) == 0 {
				filters = []qfilter.FilterType{cfg.FilterType}
			}

			experiments := make([]qfilter.Experiment, 0, len(filters))
			for _, ft := range filters {
				exp := qfilter.NewExperiment(cfg, img)
				exp.FilterType = ft
				experiments = append(experiments, exp)
			}

			backend, err := newBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout)
			defer cancel()

			for _, res := range qfilter.NewBatch(backend, cfg.Workers).Run(ctx, experiments...) {
				if res.Error != nil {
					return res.Error
				}
				fmt.Println(renderResult(res.Result))
				if err := writeArtifact(res.Result, len(experiments) > 1); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("filter", nil, "low_pass, high_pass or both (default from config)")
	cmd.Flags().Float64("d0", qfilter.DefaultD0, "frequency cutoff, recorded only")
	_ = v.BindPFlag("filters", cmd.Flags().Lookup("filter"))
	_ = v.BindPFlag("d0", cmd.Flags().Lookup("d0"))
	return cmd
}

func negativeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "negative",
		Short: "Invert every intensity bit of the encoded image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, img, err := setup()
			if err != nil {
				return err
			}

			backend, err := newBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			exp := qfilter.NewExperiment(cfg, img)
			exp.Transform = qfilter.TransformNegative

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout)
			defer cancel()

			res, err := qfilter.Run(ctx, exp, backend)
			if err != nil {
				return err
			}
			fmt.Println(renderResult(res))
			return writeArtifact(res, false)
		},
	}
}

func qasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qasm",
		Short: "Print the filter circuit as OpenQASM 2.0",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, img, err := setup()
			if err != nil {
				return err
			}

			ft := cfg.FilterType
			if name := v.GetString("qasm_filter"); name != "" {
				if ft, err = qfilter.ParseFilterType(name); err != nil {
					return err
				}
			}

			c, err := qfilter.BuildFilterCircuit(img, ft, cfg.D0)
			if err != nil {
				return err
			}

			fmt.Printf("// depth %d, size %d\n", c.Depth(), c.Size())
			fmt.Print(c.QASM())
			return nil
		},
	}

	cmd.Flags().String("filter", "", "low_pass or high_pass (default from config)")
	_ = v.BindPFlag("qasm_filter", cmd.Flags().Lookup("filter"))
	return cmd
}

func setup() (*qfilter.Config, qfilter.Image, error) {
	cfg, err := qfilter.FromViper(v)
	if err != nil {
		return nil, qfilter.Image{}, err
	}

	if len(pixels) != qfilter.ImageSize*qfilter.ImageSize {
		return nil, qfilter.Image{}, fmt.Errorf("%w: --pixels needs 4 values", qfilter.ErrInvalidImage)
	}
	img, err := qfilter.NewImage([][]int{pixels[:2], pixels[2:]})
	return cfg, img, err
}

func newBackend(ctx context.Context, cfg *qfilter.Config) (qfilter.Backend, error) {
	if !cfg.Hardware.Enabled {
		return qfilter.NewSimulator(cfg.Seed), nil
	}

	remote := qfilter.NewRemoteBackend(cfg)
	if remote.Device == "" {
		if _, err := remote.LeastBusy(ctx, cfg.Hardware.MinQubits); err != nil {
			return nil, err
		}
	}
	return remote, nil
}

func parseFilters(names []string) ([]qfilter.FilterType, error) {
	var out []qfilter.FilterType
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "both") {
			out = append(out, qfilter.LowPass, qfilter.HighPass)
			continue
		}

		ft, err := qfilter.ParseFilterType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, nil
}

func writeArtifact(res *qfilter.Result, perFilter bool) error {
	if outFile == "" {
		return nil
	}

	f, err := os.Create(artifactName(outFile, res.Experiment.FilterType, perFilter))
	if err != nil {
		return err
	}
	defer f.Close()

	return res.Encode(f)
}

// artifactName gives each filter of a multi-filter run its own file.
func artifactName(out string, ft qfilter.FilterType, perFilter bool) string {
	if !perFilter {
		return out
	}
	return strings.TrimSuffix(out, ".msgpack") + "-" + ft.String() + ".msgpack"
}
