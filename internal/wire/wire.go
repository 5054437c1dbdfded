package wire

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"Bazaar/internal/api"
	"Bazaar/internal/api/config"
	"Bazaar/internal/api/handler"
	"Bazaar/internal/job"
	"Bazaar/internal/pkg/cron"
	"Bazaar/internal/pkg/kafka"
	bzminio "Bazaar/internal/pkg/minio"
	"Bazaar/internal/pkg/moderation"
	bzmongo "Bazaar/internal/pkg/mongo"
	bzredis "Bazaar/internal/pkg/redis"
	"Bazaar/internal/pkg/worker"
	"Bazaar/internal/repository"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Infra main 中建立的外部连接，Redis 与 Mongo 可为 nil
type Infra struct {
	DB    *gorm.DB
	Mongo *mongo.Database
	Redis *redis.Client
	MinIO *minio.Client
}

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	Pool         *worker.Pool
	CronMgr      *cron.Manager
	KafkaManager *kafka.ConsumerManager
	Publisher    *kafka.Publisher
}

func BuildApplication(cfg *config.Config, infra Infra) (*ApplicationContainer, error) {
	modCfg := cfg.Moderation

	postRepo, err := newPostRepo(cfg, infra)
	if err != nil {
		return nil, err
	}

	// 规则表：Redis 中保存的运行时版本优先于配置文件
	var ruleStore service.RuleStore
	spec := modCfg.Rules
	if infra.Redis != nil {
		store := bzredis.NewRuleStore(infra.Redis)
		ruleStore = store
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		saved, loadErr := store.Load(ctx)
		cancel()
		if loadErr != nil {
			log.Warn("load persisted rule set failed, using config", "err", loadErr)
		} else if saved != nil {
			spec = *saved
		}
	}
	registry, err := moderation.NewRuleRegistry(spec)
	if err != nil {
		return nil, err
	}

	textEngine := moderation.NewTextEngine(registry)
	imageEngine := moderation.NewImageEngine(registry,
		moderation.WithImageTimeout(time.Duration(modCfg.ImageTimeout)*time.Second),
		moderation.WithImageParallelism(modCfg.ImageParallelism),
	)
	pool := worker.NewPool("moderation", modCfg.Workers, modCfg.QueueSize)
	if infra.MinIO == nil {
		return nil, errors.New("image storage requires a minio connection")
	}
	imageStore := bzminio.NewImageStore(infra.MinIO, cfg.MinIO)

	opts := service.ModerationOptions{
		GateThreshold: modCfg.GateThreshold,
		LockTTL:       time.Duration(modCfg.LockTTL) * time.Second,
		Images:        imageStore,
	}
	if infra.Redis != nil {
		opts.Locker = bzredis.NewLocker(infra.Redis)
	}

	var publisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		opts.Publisher = publisher
		opts.RemoteDispatch = modCfg.Dispatch == config.DispatchKafka
	} else if modCfg.Dispatch == config.DispatchKafka {
		return nil, errors.New("moderation dispatch kafka requires kafka.brokers")
	}

	moderationService := service.NewModerationService(postRepo, textEngine, imageEngine, pool, opts)
	postService := service.NewPostService(postRepo, moderationService, imageStore)
	ruleService := service.NewRuleService(registry, ruleStore)

	handlers := &api.HandlersGroup{
		PostHandler: handler.NewPostHandler(postService),
		RuleHandler: handler.NewRuleHandler(ruleService),
	}
	router := api.SetupRouter(handlers, cfg.Log)

	staleJob := job.NewStaleModerationJob(moderationService, time.Duration(modCfg.StaleAfter)*time.Minute)
	cronMgr := cron.NewCronManager(staleJob, modCfg.StaleCron)

	app := &ApplicationContainer{
		Router:    router,
		Pool:      pool,
		CronMgr:   cronMgr,
		Publisher: publisher,
	}
	if opts.RemoteDispatch {
		app.KafkaManager, err = kafka.NewConsumerManager(cfg.Kafka, moderationService)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

func newPostRepo(cfg *config.Config, infra Infra) (repository.PostRepo, error) {
	if cfg.DB.Driver == config.DriverMongo {
		if infra.Mongo == nil {
			return nil, errors.New("database driver mongo requires a mongo connection")
		}
		return bzmongo.NewPostRepo(infra.Mongo), nil
	}
	if infra.DB == nil {
		return nil, errors.New("no relational database connection")
	}
	return repository.NewPostRepo(infra.DB), nil
}
