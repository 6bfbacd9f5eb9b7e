package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/pkasolver/internal/config"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/pkg/errors"
)

type trainOptions struct {
	data      string
	val       string
	variant   string
	epochs    int
	batchSize int
	seed      int64
	evalEvery int
	members   int
	resume    bool
	output    string
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a pKa regressor ensemble from pair datasets",
		Long: "Trains one or more regressors on JSON-lines pair records and stores the ensemble\n" +
			"artifact built from each member's best validation weights.",
		Example: `  pkasolver train --data train.jsonl --val val.jsonl --variant gcn_pair_two_conv --epochs 1000
  pkasolver train --data train.jsonl --val val.jsonl --members 5 --output-key models/v2.json.gz`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts)
		},
	}

	variants := make([]string, 0, len(pka_gnn.Variants()))
	for _, v := range pka_gnn.Variants() {
		variants = append(variants, string(v))
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "training set (JSON lines)")
	f.StringVar(&opts.val, "val", "", "validation set (JSON lines)")
	f.StringVar(&opts.variant, "variant", "", "model variant: "+strings.Join(variants, ", "))
	f.IntVar(&opts.epochs, "epochs", 0, "last epoch to run (default from config)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "mini-batch size (default from config)")
	f.Int64Var(&opts.seed, "seed", 0, "base seed; member i uses seed+i (default from config)")
	f.IntVar(&opts.evalEvery, "eval-every", 0, "evaluation and checkpoint cadence in epochs (default from config)")
	f.IntVar(&opts.members, "members", 1, "number of ensemble members")
	f.BoolVar(&opts.resume, "resume", false, "continue a single-member run from the stored checkpoint")
	f.StringVar(&opts.output, "output-key", "", "artifact key for the trained ensemble (default: model.artifact_key)")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("val")
	return cmd
}

// trainResult summarizes a finished run.
type trainResult struct {
	Output  string         `json:"output"`
	Train   int            `json:"train_samples"`
	Val     int            `json:"validation_samples"`
	Skipped int            `json:"skipped_records"`
	Members []memberResult `json:"members"`
}

type memberResult struct {
	Index     int              `json:"index"`
	Variant   string           `json:"variant"`
	Seed      int64            `json:"seed"`
	BestEpoch int              `json:"best_epoch"`
	BestMAE   float64          `json:"best_mae"`
	Progress  pka_gnn.Progress `json:"progress"`
}

func (r *trainResult) TableHeaders() []string {
	return []string{"MEMBER", "VARIANT", "SEED", "BEST EPOCH", "BEST MAE"}
}

func (r *trainResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Members))
	for _, m := range r.Members {
		rows = append(rows, []string{
			strconv.Itoa(m.Index),
			m.Variant,
			strconv.FormatInt(m.Seed, 10),
			strconv.Itoa(m.BestEpoch),
			strconv.FormatFloat(m.BestMAE, 'f', 4, 64),
		})
	}
	return rows
}

func (r *trainResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved %d-member ensemble to %s\n", len(r.Members), r.Output)
	fmt.Fprintf(&sb, "Samples: %d train, %d validation, %d skipped\n", r.Train, r.Val, r.Skipped)
	for _, m := range r.Members {
		fmt.Fprintf(&sb, "  member %d (%s, seed %d): best MAE %.4f at epoch %d\n", m.Index, m.Variant, m.Seed, m.BestMAE, m.BestEpoch)
	}
	return sb.String()
}

// merge lays flags set on the command line over the training section.
func (o *trainOptions) merge(cmd *cobra.Command, tc config.TrainingConfig) (config.TrainingConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("variant") {
		tc.Variant = o.variant
	}
	if flags.Changed("epochs") {
		tc.MaxEpochs = o.epochs
	}
	if flags.Changed("batch-size") {
		tc.BatchSize = o.batchSize
	}
	if flags.Changed("seed") {
		tc.Seed = o.seed
	}
	if flags.Changed("eval-every") {
		tc.EvalEvery = o.evalEvery
	}
	if tc.MaxEpochs < 0 || tc.BatchSize <= 0 {
		return tc, errors.NewValidationError(errors.ErrCodeBadRequest, "epochs must be >= 0 and batch size > 0")
	}
	if o.members < 1 {
		return tc, errors.NewValidationError(errors.ErrCodeBadRequest, "members must be at least 1")
	}
	if o.resume && o.members != 1 {
		return tc, errors.NewValidationError(errors.ErrCodeBadRequest, "--resume supports a single member only")
	}
	return tc, nil
}

func runTrain(cmd *cobra.Command, opts *trainOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger.Named("train")

	tc, err := opts.merge(cmd, cfg.Training)
	if err != nil {
		return err
	}
	hp, err := tc.Hyperparameters()
	if err != nil {
		return err
	}
	feat, err := hp.Featurizer()
	if err != nil {
		return err
	}

	trainSet, skippedTrain, err := loadSamples(opts.data, feat, log)
	if err != nil {
		return err
	}
	valSet, skippedVal, err := loadSamples(opts.val, feat, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	comps, err := buildComponents(ctx, cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	output := opts.output
	if output == "" {
		output = cfg.Model.ArtifactKey
	}
	result := &trainResult{Output: output, Train: len(trainSet), Val: len(valSet), Skipped: skippedTrain + skippedVal}

	models := make([]*pka_gnn.Regressor, 0, opts.members)
	for i := 0; i < opts.members; i++ {
		memberHP := hp
		memberHP.Seed = tc.Seed + int64(i)
		key := tc.CheckpointKey
		if opts.members > 1 && key != "" {
			key = memberCheckpointKey(key, i)
		}

		model, res, err := trainMember(ctx, comps, tc, memberHP, feat, trainSet, valSet, key, opts.resume, log.With(logging.Int("member", i)))
		if err != nil {
			return err
		}
		res.Index = i
		models = append(models, model)
		result.Members = append(result.Members, res)
	}

	if err := comps.artifacts.SaveArtifact(ctx, output, pka_gnn.NewArtifact(models...)); err != nil {
		return err
	}
	log.Info("ensemble saved", logging.String("key", output), logging.Int("members", len(models)))
	return PrintResult(cmd, result)
}

func trainMember(
	ctx context.Context,
	comps *components,
	tc config.TrainingConfig,
	hp pka_gnn.Hyperparameters,
	feat *pka_gnn.Featurizer,
	trainSet, valSet []pka_gnn.Sample,
	checkpointKey string,
	resume bool,
	log logging.Logger,
) (*pka_gnn.Regressor, memberResult, error) {
	res := memberResult{Variant: string(hp.Variant), Seed: hp.Seed}

	trainerOpts := []pka_gnn.TrainerOption{
		pka_gnn.WithTrainerLogger(log),
		pka_gnn.WithEvalEvery(tc.EvalEvery),
		pka_gnn.WithArtifactSink(comps.artifacts),
	}
	if comps.metrics != nil {
		trainerOpts = append(trainerOpts, pka_gnn.WithEpochObserver(comps.metrics))
	}

	var model *pka_gnn.Regressor
	if resume {
		m, ckpt, err := comps.artifacts.LoadCheckpoint(ctx, checkpointKey)
		if err != nil {
			return nil, res, errors.Wrapf(err, errors.GetCode(err), "resume from %s", checkpointKey)
		}
		if m.NodeDim() != feat.NodeDim() || m.EdgeDim() != feat.EdgeDim() {
			return nil, res, errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
				"checkpoint features differ from the configured featurizer")
		}
		model = m
		trainerOpts = append(trainerOpts, pka_gnn.WithResume(ckpt))
		res.Variant = string(model.Hyperparameters().Variant)
		log.Info("resuming training", logging.String("key", checkpointKey), logging.Int("epoch", ckpt.Epoch))
	} else {
		m, err := pka_gnn.NewRegressor(hp, feat.NodeDim(), feat.EdgeDim())
		if err != nil {
			return nil, res, err
		}
		model = m
	}

	opt, err := pka_gnn.NewAdamW(model.Parameters(), tc.AdamW())
	if err != nil {
		return nil, res, err
	}
	trainer := pka_gnn.NewTrainer(hp.Seed, trainerOpts...)
	train := pka_gnn.NewLoader(trainSet, tc.BatchSize, true, hp.Seed)
	val := pka_gnn.NewLoader(valSet, tc.BatchSize, false, hp.Seed)

	progress, err := trainer.Fit(ctx, model, train, val, opt, checkpointKey, tc.MaxEpochs)
	if err != nil {
		return nil, res, err
	}
	res.Progress = progress

	ckpt := trainer.Checkpoint()
	if ckpt == nil || ckpt.Best.Epoch < 0 {
		return nil, res, errors.New(errors.ErrCodeAITrainingDiverged, "training finished without an evaluation")
	}
	if err := model.LoadWeights(ckpt.Best.Weights); err != nil {
		return nil, res, err
	}
	res.BestEpoch = ckpt.Best.Epoch
	res.BestMAE = ckpt.Best.Loss
	return model, res, nil
}

func loadSamples(path string, feat *pka_gnn.Featurizer, log logging.Logger) ([]pka_gnn.Sample, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, errors.ErrCodeAIDatasetInvalid, "open %s", path)
	}
	defer f.Close()

	records, err := pka_gnn.ReadRecords(f)
	if err != nil {
		return nil, 0, errors.Wrapf(err, errors.GetCode(err), "read %s", path)
	}
	samples, skipped := feat.Samples(records)
	for _, s := range skipped {
		log.Warn("record skipped",
			logging.String("file", path),
			logging.Int("index", s.Index),
			logging.String("id", s.ID),
			logging.Err(s.Err))
	}
	log.Info("dataset loaded", logging.String("file", path), logging.Int("samples", len(samples)), logging.Int("skipped", len(skipped)))
	return samples, len(skipped), nil
}

// memberCheckpointKey inserts the member index before the extension.
func memberCheckpointKey(key string, i int) string {
	base, ext := key, ""
	start := strings.LastIndex(key, "/") + 1
	if idx := strings.Index(key[start:], "."); idx > 0 {
		base, ext = key[:start+idx], key[start+idx:]
	}
	return fmt.Sprintf("%s-m%d%s", base, i, ext)
}

//Personal.AI order the ending
