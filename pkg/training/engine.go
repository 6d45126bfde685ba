package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/concurrency"
	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/llm"
	"github.com/devsapp/serverless-automl-hub/pkg/log"
	"github.com/devsapp/serverless-automl-hub/pkg/metrics"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/module"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/sirupsen/logrus"
)

var (
	ErrForbidden       = errors.New("model belongs to another user")
	ErrDatasetNotReady = errors.New("dataset is not processed")
	ErrNotTraining     = errors.New("model is not training")
	ErrNotTrained      = errors.New("model is not trained")
	ErrQueueFull       = errors.New("training queue is full")
	ErrAlreadyRunning  = errors.New("model is locked by another run")
	ErrStaleRun        = errors.New("training run superseded")
	ErrCancelled       = errors.New(config.TRAINCANCEL)
)

// progress checkpoints of a run
const (
	progressClaimed    = 5
	progressDownloaded = 15
	progressParsed     = 30
	progressPrepared   = 40
	progressTrained    = 80
	progressInsight    = 90

	staleTaskKey = "__stale__"
	lockRetry    = 500 * time.Millisecond
)

// transientError marks failures that leave the run to recovery instead of failing the model
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func transient(err error) error {
	return &transientError{err: err}
}

// IsTransient reports whether a run error is worth retrying with the same run id.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// runError maps store errors of run scoped writes
func runError(err error) error {
	if errors.Is(err, datastore.ErrConditionFailed) || errors.Is(err, datastore.ErrNotFound) {
		return ErrStaleRun
	}
	return transient(err)
}

// Job is one claimed training run.
type Job struct {
	ModelId string
	RunId   string
}

type Options struct {
	Workers     int
	QueueSize   int
	StaleAfter  time.Duration
	MaxAttempts int64
	LockWait    time.Duration
}

func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Workers:     c.TrainWorkers,
		QueueSize:   c.TrainQueueSize,
		StaleAfter:  time.Duration(c.TrainStaleAfter) * time.Second,
		MaxAttempts: int64(c.TrainMaxAttempts),
		LockWait:    10 * time.Second,
	}
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1
	}
	if o.StaleAfter < time.Second {
		o.StaleAfter = 300 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.LockWait < 0 {
		o.LockWait = 0
	}
}

// Deps are the collaborators of the engine. Listener and Dispatcher are optional;
// without a dispatcher runs execute on the local worker pool.
type Deps struct {
	Datasets   *datastore.DatasetStore
	Models     *datastore.ModelStore
	Results    *datastore.ResultStore
	Objects    module.ObjectStore
	Locker     concurrency.Locker
	Insighter  llm.Insighter
	Metrics    *metrics.Collector
	Listener   *module.ListenDbTask
	Dispatcher module.Dispatcher
}

type activeRun struct {
	runId  string
	cancel context.CancelCauseFunc
}

// Engine claims, runs, cancels and recovers training runs.
type Engine struct {
	Deps
	opts     Options
	trainers map[string]Trainer
	queue    chan *Job
	running  *sync.Map

	ctx       context.Context
	cancel    context.CancelFunc
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewEngine(deps Deps, opts Options) *Engine {
	opts.defaults()
	if deps.Insighter == nil {
		deps.Insighter = llm.Disabled{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		Deps:     deps,
		opts:     opts,
		trainers: Trainers(),
		queue:    make(chan *Job, opts.QueueSize),
		running:  new(sync.Map),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
}

// Start launches the local workers, recovers stale runs once and keeps listening for more.
func (e *Engine) Start() {
	if e.Dispatcher == nil {
		for i := 0; i < e.opts.Workers; i++ {
			e.wg.Add(1)
			go e.worker(i)
		}
		logrus.Infof("started %d training workers", e.opts.Workers)
	}
	if n, err := e.Recover(e.ctx); err != nil {
		logrus.Warnf("recover stale runs fail: %s", err.Error())
	} else if n > 0 {
		logrus.Infof("recovered %d stale training runs", n)
	}
	if e.Listener != nil {
		e.Listener.AddTask(staleTaskKey, module.StaleListen, module.StaleEvent(func(stale []*models.MLModel) {
			e.recoverStale(stale)
		}), int64(e.opts.StaleAfter/time.Second))
	}
}

// Close stops the workers; interrupted and queued runs are picked up by recovery later.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.Listener != nil {
			e.Listener.RemoveTask(staleTaskKey)
		}
		close(e.stop)
		e.cancel()
		e.wg.Wait()
	})
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case job := <-e.queue:
			e.Metrics.SetQueueDepth(len(e.queue))
			if err := e.Run(e.ctx, job); err != nil {
				logrus.WithFields(logrus.Fields{"worker": id, "modelId": job.ModelId, "runId": job.RunId}).
					Debugf("run finished with %s", err.Error())
			}
		}
	}
}

// Trainer for a problem type.
func (e *Engine) Trainer(problemType string) (Trainer, error) {
	t, ok := e.trainers[problemType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, problemType)
	}
	return t, nil
}

// ValidateConfig checks a configuration against a stored data profile and fills in defaults.
func (e *Engine) ValidateConfig(problemType string, cfg *models.ModelConfig, profile *dataset.DataProfile) error {
	t, err := e.Trainer(problemType)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrDatasetNotReady
	}
	return t.Validate(cfg, dataset.FromSchema(profile.Columns))
}

func (e *Engine) owned(userId, modelId string) (*models.MLModel, error) {
	m, err := e.Models.Get(modelId)
	if err != nil {
		return nil, err
	}
	if m.UserId != userId {
		return nil, ErrForbidden
	}
	return m, nil
}

func trainResponse(m *models.MLModel) *models.TrainResponse {
	return &models.TrainResponse{ModelId: m.Id, RunId: m.RunId, Status: m.Status, Attempt: m.Attempt}
}

// Submit claims the model for a new run. A model already training returns its current run.
func (e *Engine) Submit(_ context.Context, userId, modelId string) (*models.TrainResponse, error) {
	m, err := e.owned(userId, modelId)
	if err != nil {
		return nil, err
	}
	if m.Status == config.MODEL_TRAINING {
		return trainResponse(m), nil
	}
	if _, err := e.Trainer(m.ProblemType); err != nil {
		return nil, err
	}
	ds, err := e.Datasets.Get(m.DatasetId)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, fmt.Errorf("%w: dataset %s was deleted", ErrDatasetNotReady, m.DatasetId)
	}
	if err != nil {
		return nil, err
	}
	if ds.Status != config.DATASET_PROCESSED {
		return nil, fmt.Errorf("%w: dataset status is %s", ErrDatasetNotReady, ds.Status)
	}
	runId, ok, err := e.Models.Claim(m)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := e.Models.Get(modelId)
		if err != nil {
			return nil, err
		}
		if cur.Status == config.MODEL_TRAINING {
			return trainResponse(cur), nil
		}
		return nil, fmt.Errorf("%w: model changed while submitting", datastore.ErrConditionFailed)
	}
	logger := log.JobLogger(m.Id, runId, userId)
	if err := e.dispatch(&Job{ModelId: m.Id, RunId: runId}); err != nil {
		e.fail(m.Id, runId, err.Error(), logger)
		return nil, err
	}
	logger.Infof("training submitted, problemType=%s", m.ProblemType)
	return &models.TrainResponse{ModelId: m.Id, RunId: runId, Status: config.MODEL_TRAINING, Attempt: 1}, nil
}

func (e *Engine) dispatch(job *Job) error {
	if e.Dispatcher != nil {
		return e.Dispatcher.Dispatch(job.ModelId, job.RunId)
	}
	select {
	case e.queue <- job:
		e.Metrics.SetQueueDepth(len(e.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *Engine) fail(id, runId, msg string, logger *logrus.Entry) {
	if err := e.Models.Fail(id, runId, msg); err != nil {
		logger.Warnf("mark run failed fail: %s", err.Error())
	}
}

func (e *Engine) lockTTL() time.Duration {
	return 2 * e.opts.StaleAfter
}

// lock waits up to LockWait for the model key
func (e *Engine) lock(ctx context.Context, modelId string) (func(), error) {
	deadline := time.Now().Add(e.opts.LockWait)
	for {
		unlock, ok, err := e.Locker.TryLock(ctx, modelId, e.lockTTL())
		if err != nil {
			return nil, transient(fmt.Errorf("lock model: %w", err))
		}
		if ok {
			return unlock, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrAlreadyRunning
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetry):
		}
	}
}

// Run executes a claimed run. Only the run that still owns the model row writes anything.
func (e *Engine) Run(ctx context.Context, job *Job) error {
	m, err := e.Models.Get(job.ModelId)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return ErrStaleRun
		}
		return transient(err)
	}
	logger := log.JobLogger(m.Id, job.RunId, m.UserId)
	if m.Status != config.MODEL_TRAINING || m.RunId != job.RunId {
		logger.Info("run superseded before start")
		return ErrStaleRun
	}
	unlock, err := e.lock(ctx, m.Id)
	if err != nil {
		logger.Warnf("training not started: %s", err.Error())
		return err
	}
	defer unlock()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	active := &activeRun{runId: job.RunId, cancel: cancel}
	e.running.Store(m.Id, active)
	defer e.running.CompareAndDelete(m.Id, active)
	if e.Listener != nil {
		e.Listener.AddTask(m.Id, module.CancelListen, module.CancelEvent(m.Id, func(cause error) {
			if cause == nil {
				cancel(ErrCancelled)
			} else {
				cancel(ErrStaleRun)
			}
		}), job.RunId)
		defer e.Listener.RemoveTask(m.Id)
	}
	go e.heartbeat(runCtx, m.Id, job.RunId, cancel)

	start := time.Now()
	logger.Infof("training started, attempt=%d", m.Attempt)
	err = e.execute(runCtx, m, job.RunId, logger)
	d := time.Since(start)

	outcome := "completed"
	switch {
	case err == nil:
		logger.Infof("training completed in %s", d)
	case errors.Is(err, ErrStaleRun):
		outcome = "superseded"
		logger.Warn("run superseded, stop without writing")
	case errors.Is(err, ErrCancelled):
		outcome = "cancelled"
		logger.Info("training cancelled")
		e.fail(m.Id, job.RunId, config.TRAINCANCEL, logger)
	case IsTransient(err) || ctx.Err() != nil:
		outcome = "interrupted"
		logger.Warnf("training interrupted, left for recovery: %s", err.Error())
	default:
		outcome = "error"
		logger.Errorf("training fail: %s", err.Error())
		e.fail(m.Id, job.RunId, err.Error(), logger)
	}
	e.Metrics.RecordTraining(m.ProblemType, outcome, d)
	return err
}

// heartbeat keeps a long step from looking stale
func (e *Engine) heartbeat(ctx context.Context, id, runId string, stop context.CancelCauseFunc) {
	ticker := time.NewTicker(e.opts.StaleAfter / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := e.Models.Heartbeat(id, runId); err != nil {
			if errors.Is(err, datastore.ErrConditionFailed) {
				stop(ErrStaleRun)
				return
			}
			logrus.WithFields(logrus.Fields{"modelId": id, "runId": runId}).Warnf("heartbeat fail: %s", err.Error())
		}
	}
}

// checkpoint observes cancellation and records progress for the run
func (e *Engine) checkpoint(ctx context.Context, id, runId string, progress int64) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	cancelled, err := e.Models.CancelRequested(id, runId)
	if err != nil {
		return runError(err)
	}
	if cancelled {
		return ErrCancelled
	}
	if err := e.Models.UpdateProgress(id, runId, progress); err != nil {
		return runError(err)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, m *models.MLModel, runId string, logger *logrus.Entry) error {
	if err := e.checkpoint(ctx, m.Id, runId, progressClaimed); err != nil {
		return err
	}
	trainer, err := e.Trainer(m.ProblemType)
	if err != nil {
		return err
	}
	ds, err := e.Datasets.Get(m.DatasetId)
	if errors.Is(err, datastore.ErrNotFound) {
		return fmt.Errorf("dataset %s not found", m.DatasetId)
	}
	if err != nil {
		return transient(err)
	}
	data, err := e.Objects.DownloadFileToBytes(ds.StoragePath)
	if errors.Is(err, module.ErrObjectNotFound) {
		return fmt.Errorf("dataset file %s not found", ds.StoragePath)
	}
	if err != nil {
		return transient(fmt.Errorf("download dataset: %w", err))
	}
	if err := e.checkpoint(ctx, m.Id, runId, progressDownloaded); err != nil {
		return err
	}

	table, err := dataset.Parse(ds.FileName, ds.MimeType, data)
	if err != nil {
		return fmt.Errorf("parse dataset: %w", err)
	}
	if err := e.checkpoint(ctx, m.Id, runId, progressParsed); err != nil {
		return err
	}

	cfg := m.Configuration
	if err := trainer.Validate(&cfg, table); err != nil {
		return err
	}
	if err := e.checkpoint(ctx, m.Id, runId, progressPrepared); err != nil {
		return err
	}

	out, err := trainer.Train(ctx, table, &cfg)
	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return err
	}
	if err := e.checkpoint(ctx, m.Id, runId, progressTrained); err != nil {
		return err
	}

	out.Insight = e.insight(ctx, m.ProblemType, out.Results, logger)
	if err := e.checkpoint(ctx, m.Id, runId, progressInsight); err != nil {
		return err
	}

	if err := e.Models.Complete(m.Id, runId, out.Results, out.Metrics, out.Insight, out.Artifact); err != nil {
		return runError(err)
	}
	rec, err := e.Models.Get(m.Id)
	if err != nil {
		logger.Warnf("reload completed model fail: %s", err.Error())
		return nil
	}
	if err := e.Results.Append(&models.ModelResult{
		Id:          utils.NewId(),
		UserId:      m.UserId,
		ModelId:     m.Id,
		ModelName:   m.Name,
		ProblemType: m.ProblemType,
		RunId:       runId,
		Metrics:     rec.Metrics,
		Results:     rec.Results,
		Insight:     rec.Insight,
	}); err != nil {
		logger.Warnf("append result history fail: %s", err.Error())
		return nil
	}
	e.dropOrphanResults(m.Id, logger)
	return nil
}

// dropOrphanResults removes the history of a model deleted while its run was finishing.
// DeleteModel removes the row before the history.
func (e *Engine) dropOrphanResults(modelId string, logger *logrus.Entry) {
	if _, err := e.Models.Get(modelId); !errors.Is(err, datastore.ErrNotFound) {
		return
	}
	logger.Info("model deleted during run, dropping result history")
	if err := e.Results.DeleteByModel(modelId); err != nil {
		logger.Warnf("drop result history fail: %s", err.Error())
	}
}

// insight is advisory; failures leave it empty
func (e *Engine) insight(ctx context.Context, problemType string, results interface{}, logger *logrus.Entry) string {
	text, err := e.Insighter.Insight(ctx, problemType, results)
	switch {
	case err != nil:
		e.Metrics.RecordInsight("error")
		logger.Warnf("insight fail: %s", err.Error())
		return ""
	case text == "":
		e.Metrics.RecordInsight("empty")
	default:
		e.Metrics.RecordInsight("ok")
	}
	return text
}

// Cancel flags the current run; a run executing in this process stops at once.
func (e *Engine) Cancel(_ context.Context, userId, modelId string) error {
	m, err := e.owned(userId, modelId)
	if err != nil {
		return err
	}
	ok, err := e.Models.RequestCancel(m.Id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTraining
	}
	if v, ok := e.running.Load(m.Id); ok {
		v.(*activeRun).cancel(ErrCancelled)
	}
	log.JobLogger(m.Id, m.RunId, userId).Info("training cancel requested")
	return nil
}

// Recover hands stale runs to new run ids, or fails them past MaxAttempts.
func (e *Engine) Recover(_ context.Context) (int, error) {
	stale, err := e.Models.ListStale(utils.TimestampS() - int64(e.opts.StaleAfter/time.Second))
	if err != nil {
		return 0, err
	}
	return e.recoverStale(stale), nil
}

func (e *Engine) recoverStale(stale []*models.MLModel) int {
	n := 0
	for _, m := range stale {
		logger := log.JobLogger(m.Id, m.RunId, m.UserId)
		if m.Attempt >= e.opts.MaxAttempts {
			err := e.Models.Fail(m.Id, m.RunId, fmt.Sprintf("training abandoned after %d attempts", m.Attempt))
			switch {
			case err == nil:
				n++
				e.Metrics.RecordRecovered("abandoned")
				logger.Warnf("stale run abandoned after %d attempts", m.Attempt)
			case !errors.Is(err, datastore.ErrConditionFailed):
				logger.Warnf("abandon stale run fail: %s", err.Error())
			}
			continue
		}
		runId, ok, err := e.Models.Reclaim(m)
		if err != nil {
			logger.Warnf("reclaim stale run fail: %s", err.Error())
			continue
		}
		if !ok {
			continue
		}
		n++
		e.Metrics.RecordRecovered("requeued")
		logger.Infof("stale run requeued as %s, attempt=%d", runId, m.Attempt+1)
		if err := e.dispatch(&Job{ModelId: m.Id, RunId: runId}); err != nil {
			e.fail(m.Id, runId, err.Error(), log.JobLogger(m.Id, runId, m.UserId))
		}
	}
	return n
}

// Predict scores new input with the persisted artifact of a trained model.
func (e *Engine) Predict(_ context.Context, userId, modelId string, req *models.PredictRequest) (*models.PredictResponse, error) {
	m, err := e.owned(userId, modelId)
	if err != nil {
		return nil, err
	}
	if m.Status != config.MODEL_COMPLETED && m.Status != config.MODEL_DEPLOYED {
		return nil, fmt.Errorf("%w: status is %s", ErrNotTrained, m.Status)
	}
	t, err := e.Trainer(m.ProblemType)
	if err != nil {
		return nil, err
	}
	preds, err := t.Predict(m.Artifact, req)
	if err != nil {
		return nil, err
	}
	return &models.PredictResponse{ModelId: m.Id, ProblemType: m.ProblemType, Predictions: preds}, nil
}
