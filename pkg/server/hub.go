package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/devsapp/serverless-automl-hub/api"
	"github.com/devsapp/serverless-automl-hub/pkg/concurrency"
	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/handler"
	"github.com/devsapp/serverless-automl-hub/pkg/llm"
	"github.com/devsapp/serverless-automl-hub/pkg/metrics"
	"github.com/devsapp/serverless-automl-hub/pkg/module"
	"github.com/devsapp/serverless-automl-hub/pkg/training"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HubServer struct {
	srv          *http.Server
	engine       *training.Engine
	listenTask   *module.ListenDbTask
	profileStore datastore.Datastore
	datasetStore datastore.Datastore
	modelStore   datastore.Datastore
	resultStore  datastore.Datastore
}

func NewHubServer(port string, dbType datastore.DatastoreType, mode string) (*HubServer, error) {
	// init swagger, a broken document fails the start
	swagger, err := api.GetSwagger()
	if err != nil {
		logrus.Errorf("openapi init error %v", err)
		return nil, err
	}
	// init oss manager
	if err := module.NewOssManager(); err != nil {
		logrus.Errorf("oss init error %v", err)
		return nil, err
	}
	s := new(HubServer)
	tableFactory := datastore.DatastoreFactory{}
	for _, t := range []struct {
		name  string
		store *datastore.Datastore
	}{
		{datastore.KProfileTableName, &s.profileStore},
		{datastore.KDatasetTableName, &s.datasetStore},
		{datastore.KModelTableName, &s.modelStore},
		{datastore.KResultTableName, &s.resultStore},
	} {
		table, err := tableFactory.NewTable(dbType, t.name)
		if err != nil {
			logrus.Errorf("table %s init error %v", t.name, err)
			s.closeStores()
			return nil, err
		}
		*t.store = table
	}
	profiles := datastore.NewProfileStore(s.profileStore)
	datasets := datastore.NewDatasetStore(s.datasetStore)
	modelStore := datastore.NewModelStore(s.modelStore)
	results := datastore.NewResultStore(s.resultStore)
	module.InitUserManager(profiles)

	collector := metrics.NewCollector()
	// init listen event: cancel signals and stale runs
	s.listenTask = module.NewListenDbTask(config.ConfigGlobal.ListenInterval, modelStore)
	var dispatcher module.Dispatcher
	if config.ConfigGlobal.UseFcDispatch() {
		funcDispatcher, err := module.NewFuncDispatcher()
		if err != nil {
			logrus.Errorf("fc dispatcher init error %v", err)
			s.closeStores()
			return nil, err
		}
		dispatcher = funcDispatcher
	}
	s.engine = training.NewEngine(training.Deps{
		Datasets:   datasets,
		Models:     modelStore,
		Results:    results,
		Objects:    module.OssGlobal,
		Locker:     concurrency.NewLocker(),
		Insighter:  newInsighter(),
		Metrics:    collector,
		Listener:   s.listenTask,
		Dispatcher: dispatcher,
	}, training.OptionsFromConfig(config.ConfigGlobal))
	s.engine.Start()

	// init handler
	hubHandler := handler.NewHubHandler(datasets, modelStore, results, module.OssGlobal,
		module.UserManagerGlobal, s.engine, collector, config.ConfigGlobal.MaxUploadBytes)
	var auth *module.UserManager
	if config.ConfigGlobal.EnableLogin() {
		auth = module.UserManagerGlobal
	}
	s.srv = &http.Server{
		Addr:    net.JoinHostPort("0.0.0.0", port),
		Handler: NewRouter(hubHandler, collector, auth, swagger, mode),
	}
	return s, nil
}

func newInsighter() llm.Insighter {
	if !config.ConfigGlobal.LlmEnable {
		return llm.Disabled{}
	}
	return llm.NewClient(config.ConfigGlobal.LlmBaseUrl, config.ConfigGlobal.LlmApiKey, config.ConfigGlobal.LlmModel,
		time.Duration(config.ConfigGlobal.LlmTimeout)*time.Second,
		llm.WithRetry(config.ConfigGlobal.LlmRetry, 500*time.Millisecond, 10*time.Second),
		llm.WithMaxTokens(config.ConfigGlobal.LlmMaxTokens))
}

// NewRouter gin engine with the hub routes. A nil auth manager disables login.
func NewRouter(h handler.ServerInterface, collector *metrics.Collector, auth *module.UserManager,
	swagger *openapi3.T, mode string) *gin.Engine {
	switch mode {
	case gin.DebugMode:
		gin.SetMode(gin.DebugMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(CORSMiddleware())
	if mode == "product" {
		router.Use(handler.RequestLogger(), gin.Recovery())
	} else {
		router.Use(gin.Logger(), gin.Recovery())
	}
	router.Use(handler.Stat(collector))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))
	router.GET("/openapi.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, swagger)
	})
	handler.RegisterHandlersWithOptions(router, h, handler.GinServerOptions{
		Middlewares: []handler.MiddlewareFunc{handler.ApiAuth(auth)},
		ErrorHandler: func(c *gin.Context, err error, code int) {
			c.JSON(code, module.Error{Code: int32(code), Message: err.Error()})
		},
	})
	return router
}

// Start hub server
func (s *HubServer) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatalf("listen: %s\n", err)
		return err
	}
	return nil
}

func (s *HubServer) closeStores() {
	for _, store := range []datastore.Datastore{s.profileStore, s.datasetStore, s.modelStore, s.resultStore} {
		if store != nil {
			store.Close()
		}
	}
}

// Close shutdown hub server, timeout=shutdownTimeout
func (s *HubServer) Close(shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// stop accepting requests before the stores go away
	err := s.srv.Shutdown(ctx)
	if s.engine != nil {
		s.engine.Close()
	}
	if s.listenTask != nil {
		s.listenTask.Close()
	}
	s.closeStores()
	if err != nil {
		logrus.Error("Server forced to shutdown: ", err)
		return err
	}
	return nil
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "false")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
