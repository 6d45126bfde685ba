package module

import (
	"errors"
	"sync"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/sirupsen/logrus"
)

type CallBack func(v any)

type ListenType int32

const (
	// CancelListen curVal is the run id; the callback fires once the cancel flag is set
	// or the run lost the row
	CancelListen ListenType = iota
	// StaleListen curVal is the stale threshold in seconds; the callback gets the stale model rows
	StaleListen
)

type DbTaskItem struct {
	listenType ListenType
	callBack   CallBack
	curVal     any
}

// ListenDbTask listen db value change and call callback func
// for example: training cancel signal and stale training runs
type ListenDbTask struct {
	modelStore     *datastore.ModelStore
	intervalSecond int32
	tasks          *sync.Map
	stop           chan struct{}
	closeOnce      sync.Once
}

func NewListenDbTask(intervalSecond int32, modelStore *datastore.ModelStore) *ListenDbTask {
	listenTask := &ListenDbTask{
		modelStore:     modelStore,
		intervalSecond: intervalSecond,
		tasks:          new(sync.Map),
		stop:           make(chan struct{}),
	}
	go listenTask.init()
	return listenTask
}

// init listen
func (l *ListenDbTask) init() {
	ticker := time.NewTicker(time.Duration(l.intervalSecond) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		l.poll()
	}
}

func (l *ListenDbTask) poll() {
	l.tasks.Range(func(key, value any) bool {
		taskKey := key.(string)
		taskItem := value.(*DbTaskItem)
		switch taskItem.listenType {
		case CancelListen:
			l.cancelTask(taskKey, taskItem)
		case StaleListen:
			l.staleTask(taskItem)
		}
		return true
	})
}

// listen training cancel, key is the model id
func (l *ListenDbTask) cancelTask(modelId string, item *DbTaskItem) {
	runId := item.curVal.(string)
	cancel, err := l.modelStore.CancelRequested(modelId, runId)
	switch {
	case errors.Is(err, datastore.ErrConditionFailed) || errors.Is(err, datastore.ErrNotFound):
		// run superseded, finished elsewhere or model deleted
		l.tasks.Delete(modelId)
		item.callBack(err)
	case err != nil:
		logrus.WithFields(logrus.Fields{"modelId": modelId, "runId": runId}).
			Warnf("listen cancel fail: %s", err.Error())
	case cancel:
		l.tasks.Delete(modelId)
		item.callBack(nil)
	}
}

// listen stale training runs
func (l *ListenDbTask) staleTask(item *DbTaskItem) {
	staleAfter := item.curVal.(int64)
	stale, err := l.modelStore.ListStale(utils.TimestampS() - staleAfter)
	if err != nil {
		logrus.Warnf("listen stale runs fail: %s", err.Error())
		return
	}
	if len(stale) > 0 {
		item.callBack(stale)
	}
}

// AddTask add listen task
func (l *ListenDbTask) AddTask(key string, listenType ListenType, callBack CallBack, curVal any) {
	l.tasks.Store(key, &DbTaskItem{
		listenType: listenType,
		callBack:   callBack,
		curVal:     curVal,
	})
}

// RemoveTask stop listening for key
func (l *ListenDbTask) RemoveTask(key string) {
	l.tasks.Delete(key)
}

// Close close listen
func (l *ListenDbTask) Close() {
	l.closeOnce.Do(func() {
		close(l.stop)
	})
}
