package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	fc3 "github.com/alibabacloud-go/fc-20230330/client"
	fc "github.com/alibabacloud-go/fc-open-20210406/v2/client"
	fcService "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	invokeReadTimeoutMs    = 10 * 1000
	invokeConnectTimeoutMs = 5 * 1000
	invokeRetry            = 3
	RETRY_INTERVALMS       = time.Duration(200) * time.Millisecond
)

// Dispatcher hands a claimed training run to wherever it executes
type Dispatcher interface {
	Dispatch(modelId, runId string) error
}

// FuncDispatcher invokes the worker function asynchronously.
// The worker calls back into POST /internal/train with the same body.
type FuncDispatcher struct {
	fcClient     *fc.Client
	fc3Client    *fc3.Client
	serviceName  string
	functionName string
	workerKey    string
}

func isFc3() bool {
	return config.ConfigGlobal.ServiceName == ""
}

func fcEndpoint() string {
	return fmt.Sprintf("%s.%s.fc.aliyuncs.com", config.ConfigGlobal.AccountId, config.ConfigGlobal.Region)
}

func NewFuncDispatcher() (*FuncDispatcher, error) {
	cfg := new(openapi.Config).SetAccessKeyId(config.ConfigGlobal.AccessKeyId).
		SetAccessKeySecret(config.ConfigGlobal.AccessKeySecret).SetSecurityToken(config.ConfigGlobal.AccessKeyToken).
		SetProtocol("HTTP").SetEndpoint(fcEndpoint())
	d := &FuncDispatcher{
		serviceName:  config.ConfigGlobal.ServiceName,
		functionName: config.ConfigGlobal.FunctionName,
		workerKey:    config.ConfigGlobal.WorkerKey,
	}
	var err error
	if isFc3() {
		d.fc3Client, err = fc3.NewClient(cfg)
	} else {
		d.fcClient, err = fc.NewClient(cfg)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func runtimeOptions() *fcService.RuntimeOptions {
	return &fcService.RuntimeOptions{
		ReadTimeout:    utils.Int(invokeReadTimeoutMs),
		ConnectTimeout: utils.Int(invokeConnectTimeoutMs),
	}
}

// Dispatch async invoke, retried on transport errors
func (f *FuncDispatcher) Dispatch(modelId, runId string) error {
	body, err := json.Marshal(&models.InternalTrainRequest{ModelId: modelId, RunId: runId})
	if err != nil {
		return err
	}
	for i := 0; i < invokeRetry; i++ {
		if err = f.invoke(body); err == nil {
			return nil
		}
		logrus.WithFields(logrus.Fields{"modelId": modelId, "runId": runId}).
			Warnf("invoke worker function %s fail: %s", f.functionName, err.Error())
		time.Sleep(RETRY_INTERVALMS * time.Duration(i+1))
	}
	return fmt.Errorf("invoke worker function %s: %w", f.functionName, err)
}

// fc3 takes the event as a stream, fc2 as bytes
func fc3InvokeRequest(body []byte) *fc3.InvokeFunctionRequest {
	return new(fc3.InvokeFunctionRequest).SetRequest(bytes.NewReader(body))
}

func (f *FuncDispatcher) invoke(body []byte) error {
	if isFc3() {
		headers := &fc3.InvokeFunctionHeaders{
			XFcInvocationType: utils.String(config.FC_ASYNC_VALUE),
			CommonHeaders: map[string]*string{
				config.WORKER_KEY_HEADER: utils.String(f.workerKey),
			},
		}
		_, err := f.fc3Client.InvokeFunctionWithOptions(&f.functionName,
			fc3InvokeRequest(body), headers, runtimeOptions())
		return err
	}
	headers := &fc.InvokeFunctionHeaders{
		XFcInvocationType: utils.String(config.FC_ASYNC_VALUE),
		XFcAccountId:      utils.String(config.ConfigGlobal.AccountId),
		CommonHeaders: map[string]*string{
			config.WORKER_KEY_HEADER: utils.String(f.workerKey),
		},
	}
	_, err := f.fcClient.InvokeFunctionWithOptions(&f.serviceName, &f.functionName,
		new(fc.InvokeFunctionRequest).SetBody(body), headers, runtimeOptions())
	return err
}
