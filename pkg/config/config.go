package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ConfigGlobal = DefaultConfig()

type Config struct {
	// account
	AccountId       string `mapstructure:"accountId" yaml:"accountId"`
	AccessKeyId     string `mapstructure:"accessKeyId" yaml:"accessKeyId"`
	AccessKeySecret string `mapstructure:"accessKeySecret" yaml:"accessKeySecret"`
	AccessKeyToken  string `mapstructure:"accessKeyToken" yaml:"accessKeyToken"`
	Region          string `mapstructure:"region" yaml:"region"`

	// ots
	OtsEndpoint     string `mapstructure:"otsEndpoint" yaml:"otsEndpoint"`
	OtsInstanceName string `mapstructure:"otsInstanceName" yaml:"otsInstanceName"`
	OtsTimeToAlive  int    `mapstructure:"otsTimeToAlive" yaml:"otsTimeToAlive"` // data expired time/second
	OtsMaxVersion   int    `mapstructure:"otsMaxVersion" yaml:"otsMaxVersion"`   // data column max version nums

	// oss
	OssMode      string `mapstructure:"ossMode" yaml:"ossMode"` // local|remote
	OssEndpoint  string `mapstructure:"ossEndpoint" yaml:"ossEndpoint"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	OssLocalPath string `mapstructure:"ossLocalPath" yaml:"ossLocalPath"`

	// db
	DbType      string `mapstructure:"dbType" yaml:"dbType"`
	DbSqlite    string `mapstructure:"dbSqlite" yaml:"dbSqlite"`
	PostgresDSN string `mapstructure:"postgresDsn" yaml:"postgresDsn"`

	// server
	Port           string `mapstructure:"port" yaml:"port"`
	Mode           string `mapstructure:"mode" yaml:"mode"` // debug|dev|product
	MaxUploadBytes int64  `mapstructure:"maxUploadBytes" yaml:"maxUploadBytes"`

	// auth
	EnableAuth    bool   `mapstructure:"enableAuth" yaml:"enableAuth"`
	JwtSecret     string `mapstructure:"jwtSecret" yaml:"jwtSecret"`
	WorkerKeyHash string `mapstructure:"workerKeyHash" yaml:"workerKeyHash"` // bcrypt hash
	WorkerKey     string `mapstructure:"workerKey" yaml:"workerKey"`         // plaintext, sent by dispatcher

	// llm
	LlmEnable    bool   `mapstructure:"llmEnable" yaml:"llmEnable"`
	LlmBaseUrl   string `mapstructure:"llmBaseUrl" yaml:"llmBaseUrl"`
	LlmApiKey    string `mapstructure:"llmApiKey" yaml:"llmApiKey"`
	LlmModel     string `mapstructure:"llmModel" yaml:"llmModel"`
	LlmTimeout   int    `mapstructure:"llmTimeout" yaml:"llmTimeout"` // second
	LlmRetry     int    `mapstructure:"llmRetry" yaml:"llmRetry"`
	LlmMaxTokens int    `mapstructure:"llmMaxTokens" yaml:"llmMaxTokens"`

	// training
	TrainWorkers     int    `mapstructure:"trainWorkers" yaml:"trainWorkers"`
	TrainQueueSize   int    `mapstructure:"trainQueueSize" yaml:"trainQueueSize"`
	TrainStaleAfter  int64  `mapstructure:"trainStaleAfter" yaml:"trainStaleAfter"` // second
	TrainMaxAttempts int    `mapstructure:"trainMaxAttempts" yaml:"trainMaxAttempts"`
	ListenInterval   int32  `mapstructure:"listenInterval" yaml:"listenInterval"` // second
	DispatchMode     string `mapstructure:"dispatchMode" yaml:"dispatchMode"`     // local|fc

	// function
	ServiceName  string `mapstructure:"serviceName" yaml:"serviceName"` // empty means fc3
	FunctionName string `mapstructure:"functionName" yaml:"functionName"`

	// lock
	LockBackend   string `mapstructure:"lockBackend" yaml:"lockBackend"` // local|redis
	RedisAddr     string `mapstructure:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDb" yaml:"redisDb"`
}

func DefaultConfig() *Config {
	return &Config{
		AccountId:        os.Getenv(ACCOUNT_ID),
		AccessKeyId:      os.Getenv(ACCESS_KEY_ID),
		AccessKeySecret:  os.Getenv(ACCESS_KEY_SECRET),
		AccessKeyToken:   os.Getenv(ACCESS_KET_TOKEN),
		Region:           "cn-beijing",
		OtsEndpoint:      "https://automl-hub.cn-beijing.ots.aliyuncs.com",
		OtsInstanceName:  "automl-hub",
		OtsMaxVersion:    1,
		OtsTimeToAlive:   -1,
		OssMode:          LOCAL,
		OssEndpoint:      "oss-cn-beijing.aliyuncs.com",
		Bucket:           "automl-hub",
		OssLocalPath:     "./oss",
		DbType:           "sqlite",
		DbSqlite:         "./sqlite3",
		Port:             "8000",
		Mode:             "dev",
		MaxUploadBytes:   50 << 20,
		LlmBaseUrl:       "https://api.openai.com/v1",
		LlmModel:         "gpt-4o-mini",
		LlmTimeout:       60,
		LlmRetry:         3,
		LlmMaxTokens:     400,
		TrainWorkers:     2,
		TrainQueueSize:   64,
		TrainStaleAfter:  300,
		TrainMaxAttempts: 3,
		ListenInterval:   1,
		DispatchMode:     LOCAL,
		FunctionName:     "automl-hub-worker",
		LockBackend:      LOCAL,
		RedisAddr:        "localhost:6379",
	}
}

// InitConfig reset ConfigGlobal from defaults, an optional yaml file and AUTOML_ env overrides.
func InitConfig(fn string) error {
	cfg := DefaultConfig()
	v := viper.New()
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)
	if fn != "" {
		v.SetConfigFile(fn)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return fmt.Errorf("read config %s: %w", fn, err)
			}
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return err
	}
	ConfigGlobal = cfg
	return nil
}

// viper only resolves env overrides for keys it already knows about.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("accountId", cfg.AccountId)
	v.SetDefault("accessKeyId", cfg.AccessKeyId)
	v.SetDefault("accessKeySecret", cfg.AccessKeySecret)
	v.SetDefault("accessKeyToken", cfg.AccessKeyToken)
	v.SetDefault("region", cfg.Region)
	v.SetDefault("otsEndpoint", cfg.OtsEndpoint)
	v.SetDefault("otsInstanceName", cfg.OtsInstanceName)
	v.SetDefault("otsTimeToAlive", cfg.OtsTimeToAlive)
	v.SetDefault("otsMaxVersion", cfg.OtsMaxVersion)
	v.SetDefault("ossMode", cfg.OssMode)
	v.SetDefault("ossEndpoint", cfg.OssEndpoint)
	v.SetDefault("bucket", cfg.Bucket)
	v.SetDefault("ossLocalPath", cfg.OssLocalPath)
	v.SetDefault("dbType", cfg.DbType)
	v.SetDefault("dbSqlite", cfg.DbSqlite)
	v.SetDefault("postgresDsn", cfg.PostgresDSN)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("maxUploadBytes", cfg.MaxUploadBytes)
	v.SetDefault("enableAuth", cfg.EnableAuth)
	v.SetDefault("jwtSecret", cfg.JwtSecret)
	v.SetDefault("workerKeyHash", cfg.WorkerKeyHash)
	v.SetDefault("workerKey", cfg.WorkerKey)
	v.SetDefault("llmEnable", cfg.LlmEnable)
	v.SetDefault("llmBaseUrl", cfg.LlmBaseUrl)
	v.SetDefault("llmApiKey", cfg.LlmApiKey)
	v.SetDefault("llmModel", cfg.LlmModel)
	v.SetDefault("llmTimeout", cfg.LlmTimeout)
	v.SetDefault("llmRetry", cfg.LlmRetry)
	v.SetDefault("llmMaxTokens", cfg.LlmMaxTokens)
	v.SetDefault("trainWorkers", cfg.TrainWorkers)
	v.SetDefault("trainQueueSize", cfg.TrainQueueSize)
	v.SetDefault("trainStaleAfter", cfg.TrainStaleAfter)
	v.SetDefault("trainMaxAttempts", cfg.TrainMaxAttempts)
	v.SetDefault("listenInterval", cfg.ListenInterval)
	v.SetDefault("dispatchMode", cfg.DispatchMode)
	v.SetDefault("serviceName", cfg.ServiceName)
	v.SetDefault("functionName", cfg.FunctionName)
	v.SetDefault("lockBackend", cfg.LockBackend)
	v.SetDefault("redisAddr", cfg.RedisAddr)
	v.SetDefault("redisPassword", cfg.RedisPassword)
	v.SetDefault("redisDb", cfg.RedisDB)
}

func (c *Config) check() error {
	needCloud := c.OssMode == REMOTE || c.DbType == "tableStore" || c.DispatchMode == DISPATCH_FC
	if needCloud && (c.AccessKeyId == "" || c.AccessKeySecret == "") {
		return errors.New("not set ACCESS_KEY_Id || ACCESS_KEY_SECRET, please check")
	}
	if c.DispatchMode == DISPATCH_FC && c.AccountId == "" {
		return errors.New("not set ACCOUNT_ID, fc dispatch need it")
	}
	if c.EnableAuth && c.JwtSecret == "" {
		return errors.New("enableAuth set but jwtSecret empty")
	}
	if c.LlmEnable && c.LlmApiKey == "" {
		return errors.New("llmEnable set but llmApiKey empty")
	}
	if c.TrainWorkers <= 0 {
		c.TrainWorkers = 1
	}
	if c.TrainQueueSize <= 0 {
		c.TrainQueueSize = 1
	}
	if c.TrainMaxAttempts <= 0 {
		c.TrainMaxAttempts = 1
	}
	if c.ListenInterval <= 0 {
		c.ListenInterval = 1
	}
	return nil
}

// EnableLogin requests need a valid bearer token
func (c *Config) EnableLogin() bool {
	return c.EnableAuth
}

// UseRemoteOss object store backed by oss bucket
func (c *Config) UseRemoteOss() bool {
	return c.OssMode == REMOTE
}

// UseFcDispatch training runs execute in the fc worker function
func (c *Config) UseFcDispatch() bool {
	return c.DispatchMode == DISPATCH_FC
}

// Masked copy for printing
func (c *Config) Masked() *Config {
	cp := *c
	for _, s := range []*string{&cp.AccessKeySecret, &cp.AccessKeyToken, &cp.JwtSecret, &cp.LlmApiKey,
		&cp.RedisPassword, &cp.WorkerKey} {
		if *s != "" {
			*s = "******"
		}
	}
	return &cp
}
