package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beka-birhanu/vinom-wager/api"
	api_i "github.com/beka-birhanu/vinom-wager/api/i"
	"github.com/beka-birhanu/vinom-wager/api/identity"
	matchapi "github.com/beka-birhanu/vinom-wager/api/match"
	socketapi "github.com/beka-birhanu/vinom-wager/api/socket"
	"github.com/beka-birhanu/vinom-wager/config"
	"github.com/beka-birhanu/vinom-wager/infrastruture/lock"
	logger "github.com/beka-birhanu/vinom-wager/infrastruture/log"
	"github.com/beka-birhanu/vinom-wager/infrastruture/repo"
	"github.com/beka-birhanu/vinom-wager/infrastruture/soroban"
	"github.com/beka-birhanu/vinom-wager/infrastruture/token"
	"github.com/beka-birhanu/vinom-wager/service"
	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/beka-birhanu/vinom-wager/socket"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Global variables for dependencies
var (
	mongoClient     *mongo.Client
	redisClient     *redis.Client
	matchRepo       *repo.MatchRepo
	submitLocker    i.Locker
	ledger          *soroban.Ledger
	hub             *socket.Hub
	matchmaker      *service.Matchmaker
	jwtTokenizer    i.Tokenizer
	matchController api_i.Controller
	authController  api_i.Controller
	router          *api.Router
	appLogger       i.Logger
)

func newLogger(prefix string, color config.Color) i.Logger {
	l, err := logger.New(prefix, color, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating %s logger: %v", prefix, err))
		os.Exit(1)
	}
	return l
}

func initMongo(ctx context.Context) {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%v", config.Envs.DBUser, config.Envs.DBPassword, config.Envs.DBHost, config.Envs.DBPort)

	clientOptions := options.Client().ApplyURI(uri)
	var err error
	mongoClient, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Failed to connect to MongoDB: %v", err))
		os.Exit(1)
	}
	if err = mongoClient.Ping(ctx, nil); err != nil {
		appLogger.Error(fmt.Sprintf("MongoDB ping failed: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Connected to MongoDB")
}

func initMatchRepo(ctx context.Context, client *mongo.Client) {
	matchRepo = repo.NewMatchRepo(client, config.Envs.DBName, "matches")
	if err := matchRepo.EnsureIndexes(ctx); err != nil {
		appLogger.Warning(fmt.Sprintf("Creating match indexes: %v", err))
	}
	appLogger.Info("Match repository initialized")
}

func initRedis(ctx context.Context) {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     config.Envs.RedisAddr,
		Password: config.Envs.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis ping failed: %v", err))
		os.Exit(1)
	}
	submitLocker = lock.NewRedisLocker(redisClient, config.Envs.SubmitLockTTLSeconds)
	appLogger.Info("Connected to Redis")
}

func initLedger() {
	var err error
	ledger, err = soroban.New(&soroban.Config{
		RPCURL:            config.Envs.RPCURL,
		ContractID:        config.Envs.ContractID,
		OperatorSecret:    config.Envs.OperatorSecret,
		NetworkPassphrase: config.Envs.NetworkPassphrase,
		BaseFee:           int64(config.Envs.BaseFee),
		TxTimeout:         time.Duration(config.Envs.TxTimeoutSeconds) * time.Second,
		Logger:            newLogger("LEDGER", config.ColorYellow),
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating ledger client: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Ledger client initialized")
}

func initHub() {
	var err error
	hub, err = socket.NewHub(&socket.Config{Logger: newLogger("SOCKET", config.ColorCyan)})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating socket hub: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Socket hub initialized")
}

func initMatchmaker(ctx context.Context) {
	wager, err := service.LoadWager(ctx, ledger)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Loading wager amount: %v", err))
		os.Exit(1)
	}
	appLogger.Info(fmt.Sprintf("Wager per match: %d", wager))

	matchmaker, err = service.NewMatchmaker(&service.Config{
		Ledger:   ledger,
		Notifier: hub,
		Logger:   newLogger("MATCHMAKER", config.ColorPurple),
		Repo:     matchRepo,
		Locker:   submitLocker,
		Options: &service.Options{
			MinFunds:     wager,
			AuthTimeout:  time.Duration(config.Envs.AuthTimeoutSeconds) * time.Second,
			PollAttempts: config.Envs.PollAttempts,
			PollInterval: time.Duration(config.Envs.PollIntervalMS) * time.Millisecond,
		},
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating matchmaker: %v", err))
		os.Exit(1)
	}

	hub.Bind(matchmaker)
	appLogger.Info("Matchmaker initialized")
}

func initJWTTokenizer() {
	jwtTokenizer = token.NewJwtService(config.Envs.JWTSecret, config.Envs.JWTIssuer)
	appLogger.Info("JWT Tokenizer initialized")
}

func initControllers() {
	var err error
	matchController, err = matchapi.NewMatchController(matchmaker, matchRepo, hub)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating match controller: %v", err))
		os.Exit(1)
	}

	authController = identity.NewIdentityServer(jwtTokenizer, config.Envs.OperatorKey, time.Duration(config.Envs.TokenTTLMinutes)*time.Minute)
	appLogger.Info("Controllers initialized")
}

func initRouter(t i.Tokenizer) {
	gin.SetMode(config.Envs.GinMode)
	router = api.NewRouter(api.Config{
		Addr:                    fmt.Sprintf("%s:%v", config.Envs.HostIP, config.Envs.RESTPort),
		BaseURL:                 "/api",
		Controllers:             []api_i.Controller{authController, matchController, socketapi.NewSocketController(hub)},
		AuthorizationMiddleware: identity.Authoriz(t),
	})
	appLogger.Info("Router initialized")
}

func main() {
	appLogger = newBootLogger()
	if err := logger.SetLevel(config.Envs.LogLevel); err != nil {
		appLogger.Warning(fmt.Sprintf("%v, keeping info", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	initMongo(startCtx)
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()
	initMatchRepo(startCtx, mongoClient)

	initRedis(startCtx)
	defer redisClient.Close()

	initLedger()
	initHub()
	initMatchmaker(startCtx)
	initJWTTokenizer()
	initControllers()
	initRouter(jwtTokenizer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down")
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error(fmt.Sprintf("Server stopped: %v", err))
		os.Exit(1)
	}
}

func newBootLogger() i.Logger {
	l, err := logger.New("APP", config.ColorGreen, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating app logger: %v\n", err)
		os.Exit(1)
	}
	return l
}
