package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/internal/sink"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/iwvelando/equity-snapshot/pkg/output"
	"github.com/iwvelando/equity-snapshot/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type analyzeOptions struct {
	*rootOptions
	inputFile    string
	input        form.RawInput
	outputFormat string
	persist      bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one income and rent submission",
		Long:  "Normalize the six form fields, print the rent burden, wage gap, living wage and financial pressure figures and optionally persist the submission to the configured sink.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.inputFile, "in", "i", "", "YAML or JSON file holding the form fields; flags override its values")
	flags.StringVar(&opts.input.JobTitle, "job-title", "", "job title")
	flags.StringVar(&opts.input.MonthlyIncome, "income", "", "monthly income, e.g. 5000 or $5,000")
	flags.StringVar(&opts.input.MonthlyRent, "rent", "", "monthly rent")
	flags.StringVar(&opts.input.Location, "location", "", "location or ZIP code")
	flags.StringVar(&opts.input.Race, "race", "", "race tag ("+joinTags(form.Races)+")")
	flags.StringVar(&opts.input.Gender, "gender", "", "gender tag ("+joinTags(form.Genders)+")")
	flags.StringVarP(&opts.outputFormat, "output-format", "o", "", "type of output override: pretty, csv, json")
	flags.BoolVar(&opts.persist, "persist", false, "write the submission to the configured sink")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	conf, logger, err := opts.loadConfiguration(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	// CLI override takes precedence over config
	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	raw, err := opts.rawInput()
	if err != nil {
		return err
	}

	sub, err := form.NewNormalizer().Normalize(raw)
	if err != nil {
		var blocked *form.ValidationBlockedError
		if errors.As(err, &blocked) {
			return fmt.Errorf("cannot analyze yet, missing: %s", strings.Join(blocked.Fields, ", "))
		}
		return err
	}

	report := output.NewReport(metrics.NewEngine(conf.NewBenchmark()), sub)
	if err := output.Write(cmd.OutOrStdout(), outputFormat, report); err != nil {
		return err
	}

	if !opts.persist {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := sink.New(ctx, conf.Sink, logger)
	if err != nil {
		logger.Error("failed to open sink, submission not persisted",
			zap.String("op", "main.runAnalyze"),
			zap.String("sink", conf.Sink.Type),
			zap.Error(err),
		)
		return nil
	}
	defer func() {
		if err := sink.Close(s); err != nil {
			logger.Warn("failed to close sink",
				zap.String("op", "main.runAnalyze"),
				zap.Error(err),
			)
		}
	}()
	if err := sink.Prepare(ctx, s); err != nil {
		logger.Error("failed to prepare sink",
			zap.String("op", "main.runAnalyze"),
			zap.String("sink", s.Name()),
			zap.Error(err),
		)
	}

	recorder := sink.NewRecorder(s, logger, nil, conf.Sink.Timeout)
	recorder.Submit(sub)
	recorder.Wait()
	return nil
}

// rawInput merges the optional input file with the field flags.
func (o *analyzeOptions) rawInput() (form.RawInput, error) {
	var raw form.RawInput
	if o.inputFile != "" {
		data, err := os.ReadFile(o.inputFile)
		if err != nil {
			return raw, fmt.Errorf("failed to read input file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder handles both.
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return raw, fmt.Errorf("failed to parse input file: %w", err)
		}
	}

	overrides := []struct {
		dst *string
		src string
	}{
		{&raw.JobTitle, o.input.JobTitle},
		{&raw.MonthlyIncome, o.input.MonthlyIncome},
		{&raw.MonthlyRent, o.input.MonthlyRent},
		{&raw.Location, o.input.Location},
		{&raw.Race, o.input.Race},
		{&raw.Gender, o.input.Gender},
	}
	for _, override := range overrides {
		if override.src != "" {
			*override.dst = override.src
		}
	}
	return raw, nil
}

func joinTags[T ~string](tags []T) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, string(tag))
	}
	return strings.Join(names, ", ")
}
