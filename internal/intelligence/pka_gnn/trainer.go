package pka_gnn

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ---------------------------------------------------------------------------
// Checkpoint
// ---------------------------------------------------------------------------

// initialBestLoss is the sentinel validation loss every real loss improves on.
const initialBestLoss = 100

// DefaultEvalEvery is the evaluation and checkpoint cadence in epochs.
const DefaultEvalEvery = 20

// LossRecord is one improvement of the best validation loss.
type LossRecord struct {
	Epoch int     `json:"epoch"`
	Loss  float64 `json:"loss"`
}

// BestState is the lowest validation loss seen so far and the weights that
// produced it. Epoch is -1 before the first evaluation.
type BestState struct {
	Loss    float64                 `json:"loss"`
	Epoch   int                     `json:"epoch"`
	Weights map[string]WeightTensor `json:"weights"`
}

// ProgressRow is one line of the evaluation table.
type ProgressRow struct {
	Epoch          int     `json:"epoch"`
	TrainLoss      float64 `json:"train_loss"`
	ValidationLoss float64 `json:"validation_loss"`
}

// Checkpoint is the resumable training record. Epoch is the next epoch to
// run. A new value is produced on every evaluation; earlier values are never
// mutated.
type Checkpoint struct {
	Epoch        int            `json:"epoch"`
	Best         BestState      `json:"best"`
	Improvements []LossRecord   `json:"improvements"`
	Progress     []ProgressRow  `json:"progress"`
	Optimizer    OptimizerState `json:"optimizer"`
}

// NewCheckpoint starts a record for model.
func NewCheckpoint(model *Regressor) *Checkpoint {
	return &Checkpoint{
		Best: BestState{Loss: initialBestLoss, Epoch: -1, Weights: model.Weights()},
	}
}

// advance returns the record after evaluating epoch.
func (c *Checkpoint) advance(epoch int, trainLoss, valLoss float64, model *Regressor, opt *AdamW) *Checkpoint {
	next := &Checkpoint{
		Epoch:        epoch + 1,
		Best:         c.Best,
		Improvements: append([]LossRecord(nil), c.Improvements...),
		Progress:     append(append([]ProgressRow(nil), c.Progress...), ProgressRow{Epoch: epoch, TrainLoss: trainLoss, ValidationLoss: valLoss}),
		Optimizer:    opt.State(),
	}
	if valLoss < c.Best.Loss {
		next.Best = BestState{Loss: valLoss, Epoch: epoch, Weights: model.Weights()}
		next.Improvements = append(next.Improvements, LossRecord{Epoch: epoch, Loss: valLoss})
	}
	return next
}

// Progress is the per-evaluation MAE of both data sets.
type Progress struct {
	TrainingSet   []float64 `json:"training-set"`
	ValidationSet []float64 `json:"validation-set"`
}

// ---------------------------------------------------------------------------
// Trainer
// ---------------------------------------------------------------------------

// ArtifactSink persists training artifacts under a key.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, key string, a *Artifact) error
}

// EpochObserver receives every evaluation.
type EpochObserver interface {
	ObserveEpoch(variant string, epoch int, trainMAE, validationMAE float64)
}

// Trainer fits one regressor at a time.
type Trainer struct {
	sink      ArtifactSink
	observer  EpochObserver
	logger    logging.Logger
	evalEvery int
	rng       *rand.Rand
	latest    *Checkpoint
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithArtifactSink persists model and checkpoint on every evaluation.
func WithArtifactSink(s ArtifactSink) TrainerOption { return func(t *Trainer) { t.sink = s } }

// WithEpochObserver reports every evaluation.
func WithEpochObserver(o EpochObserver) TrainerOption { return func(t *Trainer) { t.observer = o } }

// WithTrainerLogger sets the logger.
func WithTrainerLogger(l logging.Logger) TrainerOption { return func(t *Trainer) { t.logger = l } }

// WithEvalEvery overrides the evaluation cadence.
func WithEvalEvery(n int) TrainerOption {
	return func(t *Trainer) {
		if n > 0 {
			t.evalEvery = n
		}
	}
}

// WithResume continues from an earlier checkpoint.
func WithResume(c *Checkpoint) TrainerOption { return func(t *Trainer) { t.latest = c } }

// NewTrainer returns a trainer whose dropout masks are drawn from seed.
func NewTrainer(seed int64, opts ...TrainerOption) *Trainer {
	t := &Trainer{evalEvery: DefaultEvalEvery, rng: rand.New(rand.NewSource(seed))}
	for _, o := range opts {
		o(t)
	}
	t.logger = logging.OrNop(t.logger)
	return t
}

// Checkpoint returns the latest record, or nil before Fit has evaluated.
func (t *Trainer) Checkpoint() *Checkpoint { return t.latest }

// Fit trains model from the checkpoint epoch through maxEpochs inclusive.
// Epoch 0 only evaluates. Every evalEvery epochs both sets are evaluated and,
// when checkpointKey is set, model and checkpoint are persisted.
func (t *Trainer) Fit(ctx context.Context, model *Regressor, train, validation *Loader, opt *AdamW, checkpointKey string, maxEpochs int) (Progress, error) {
	progress := Progress{TrainingSet: []float64{}, ValidationSet: []float64{}}
	if train == nil || train.Len() == 0 || validation == nil || validation.Len() == 0 {
		return progress, errors.NewValidationError(errors.ErrCodeAIDatasetInvalid, "training and validation sets must not be empty")
	}
	if t.latest == nil {
		t.latest = NewCheckpoint(model)
	} else if t.latest.Optimizer.M != nil {
		if err := opt.LoadState(t.latest.Optimizer); err != nil {
			return progress, err
		}
	}
	variant := string(model.hp.Variant)
	log := t.logger.With(logging.String("variant", variant))
	log.Info("training started", logging.Int("from_epoch", t.latest.Epoch), logging.Int("max_epochs", maxEpochs))

	for epoch := t.latest.Epoch; epoch <= maxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return progress, err
		}
		if epoch != 0 {
			if err := t.trainEpoch(ctx, model, train, opt, epoch); err != nil {
				return progress, err
			}
		}
		if epoch%t.evalEvery != 0 {
			continue
		}
		start := time.Now()
		trainMAE, err := Evaluate(ctx, model, train)
		if err != nil {
			return progress, err
		}
		valMAE, err := Evaluate(ctx, model, validation)
		if err != nil {
			return progress, err
		}
		progress.TrainingSet = append(progress.TrainingSet, trainMAE)
		progress.ValidationSet = append(progress.ValidationSet, valMAE)
		t.latest = t.latest.advance(epoch, trainMAE, valMAE, model, opt)
		if t.observer != nil {
			t.observer.ObserveEpoch(variant, epoch, trainMAE, valMAE)
		}
		log.Info("epoch evaluated",
			logging.Int("epoch", epoch),
			logging.Float64("train_mae", trainMAE),
			logging.Float64("validation_mae", valMAE),
			logging.Float64("best_mae", t.latest.Best.Loss),
			logging.Duration("eval_duration", time.Since(start)))
		if checkpointKey != "" && t.sink != nil {
			a := NewArtifact(model)
			a.Checkpoint = t.latest
			if err := t.sink.SaveArtifact(ctx, checkpointKey, a); err != nil {
				return progress, errors.Wrapf(err, errors.ErrCodeStorageError, "save checkpoint at epoch %d", epoch)
			}
		}
	}
	return progress, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, model *Regressor, train *Loader, opt *AdamW, epoch int) error {
	batches, err := train.Batches()
	if err != nil {
		return err
	}
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		tp := NewTape()
		pred := model.Forward(tp, b, true, t.rng)
		loss := tp.MSE(pred, b.Y)
		if l := loss.Data[0]; math.IsNaN(l) || math.IsInf(l, 0) {
			return errors.NewTrainingDivergedError(epoch, l)
		}
		if err := tp.Backward(loss); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "backward pass")
		}
		opt.Step()
		opt.ZeroGrad()
	}
	return nil
}

// Evaluate returns the mean over batches of the batch MAE, rounded to three
// decimals. Dropout is off.
func Evaluate(ctx context.Context, model *Regressor, l *Loader) (float64, error) {
	batches, err := l.Batches()
	if err != nil {
		return 0, err
	}
	if len(batches) == 0 {
		return 0, errors.NewValidationError(errors.ErrCodeAIDatasetInvalid, "cannot evaluate an empty set")
	}
	total := 0.0
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		pred := model.Predict(b)
		sum := 0.0
		for i, y := range b.Y {
			sum += math.Abs(pred[i] - y)
		}
		total += sum / float64(len(b.Y))
	}
	return math.Round(total/float64(len(batches))*1000) / 1000, nil
}

//Personal.AI order the ending
