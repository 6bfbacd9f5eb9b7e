package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/config"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/pkg/errors"
)

type predictOptions struct {
	smiles     string
	molfile    string
	ph         float64
	mode       string
	openWindow bool
}

func newPredictCmd() *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the protonation microstate profile of a molecule",
		Long: "Enumerates the protonation steps of a molecule from its state at the reference pH\n" +
			"and prints every step ordered by ascending pKa.",
		Example: `  pkasolver predict --smiles "OC(=O)c1ccccc1N"
  pkasolver predict --molblock aspirin.mol --ph 7.0 --output table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.smiles, "smiles", "", "input molecule as SMILES")
	f.StringVar(&opts.molfile, "molblock", "", "path to an MDL molfile")
	f.Float64Var(&opts.ph, "ph", 0, "reference pH (default from config)")
	f.StringVar(&opts.mode, "mode", "", "site mode: rule_filtered or exhaustive (default from config)")
	f.BoolVar(&opts.openWindow, "open-window", false, "keep steps whose pKa falls outside the plausibility window")
	cmd.MarkFlagsMutuallyExclusive("smiles", "molblock")
	cmd.MarkFlagsOneRequired("smiles", "molblock")
	return cmd
}

func runPredict(cmd *cobra.Command, opts *predictOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	input, err := opts.input(cmd, cliCtx.Config)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	comps, err := buildComponents(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	svc, err := comps.scoringService(ctx)
	if err != nil {
		return err
	}
	rec, err := svc.Predict(ctx, input)
	if err != nil {
		return err
	}
	return PrintResult(cmd, &profileView{rec})
}

// input merges flags set on the command line over the sequencer section.
func (o *predictOptions) input(cmd *cobra.Command, cfg *config.Config) (*scoring.ProfileInput, error) {
	seq, err := cfg.Sequencer.Options()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("ph") {
		seq.PH = o.ph
	}
	if flags.Changed("mode") {
		if seq.Mode, err = sites.ParseMode(o.mode); err != nil {
			return nil, err
		}
	}
	if flags.Changed("open-window") {
		seq.EnforceWindow = !o.openWindow
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}

	in := &scoring.ProfileInput{SMILES: strings.TrimSpace(o.smiles), Options: seq}
	if o.molfile != "" {
		data, err := os.ReadFile(o.molfile)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "read molfile %s", o.molfile)
		}
		in.MolBlock = string(data)
	}
	return in, nil
}

// profileView renders a profile record for text and table output.
type profileView struct {
	*profile.Record
}

func (v *profileView) TableHeaders() []string {
	return []string{"STEP", "SITE", "PKA", "PROTONATED", "DEPROTONATED"}
}

func (v *profileView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Entries))
	for i, e := range v.Entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(e.Site),
			strconv.FormatFloat(e.PKa, 'f', 2, 64),
			e.Protonated,
			e.Deprotonated,
		})
	}
	return rows
}

func (v *profileView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Molecule: %s\n", v.SMILES)
	fmt.Fprintf(&sb, "pH: %.2f  mode: %s  model: %s\n", v.PH, v.Mode, v.ModelVersion)
	if len(v.Entries) == 0 {
		sb.WriteString("No protonation steps found.\n")
	}
	for i, e := range v.Entries {
		fmt.Fprintf(&sb, "%d. pKa %.2f at atom %d: %s -> %s\n", i+1, e.PKa, e.Site, e.Protonated, e.Deprotonated)
	}
	if v.Skipped > 0 {
		fmt.Fprintf(&sb, "%d candidate(s) skipped\n", v.Skipped)
	}
	return sb.String()
}

//Personal.AI order the ending
