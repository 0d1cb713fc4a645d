package wire

import (
	"Tandem/internal/api"
	"Tandem/internal/api/config"
	"Tandem/internal/api/handler"
	"Tandem/internal/job"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/cron"
	"Tandem/internal/pkg/es"
	"Tandem/internal/pkg/kafka"
	"Tandem/internal/pkg/metrics"
	"Tandem/internal/pkg/mongo"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/repository"
	"Tandem/internal/service"
	"context"
	log "log/slog"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router        *gin.Engine
	DB            *gorm.DB
	CronMgr       *cron.Manager
	KafkaManager  *kafka.ConsumerManager
	KafkaProducer *kafka.Producer
}

func BuildApplication(db *gorm.DB, mongoDB *mongodrv.Database, rdb *goredis.Client, cfg *config.Config) (*ApplicationContainer, error) {
	app := &ApplicationContainer{DB: db}
	opts := service.OptionsFromConfig(cfg.IM)

	userRepo := repository.NewUserRepo(db)
	convRepo := repository.NewConversationRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)
	typingRepo := redis.NewTypingRepo(rdb)

	// 事件总线：默认直接发布到 Redis，kafka 模式下经由 topic 再扇出
	redisPublisher := redis.NewPublisher(rdb)
	var publisher service.EventPublisher = redisPublisher
	if cfg.IM.EventBus == consts.EventBusKafka {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		kafkaMgr, err := kafka.NewConsumerManager(cfg.Kafka, redisPublisher)
		if err != nil {
			_ = producer.Close()
			return nil, err
		}
		publisher = producer
		app.KafkaProducer = producer
		app.KafkaManager = kafkaMgr
	}

	publisher = metrics.InstrumentPublisher(publisher)

	var searcher service.UserSearcher
	if cfg.Elastic.Enable && es.Client != nil {
		userESRepo := es.NewUserRepo(es.Client, cfg.Elastic.UserIndex)
		if err := userESRepo.EnsureIndex(context.Background()); err != nil {
			log.Warn("Failed to ensure user index, falling back to database search", "err", err)
		} else {
			searcher = userESRepo
		}
	}

	userService := service.NewUserService(userRepo, searcher, opts)
	imService := service.NewIMService(convRepo, userRepo, messageRepo, publisher, opts)
	messageService := service.NewMessageService(convRepo, messageRepo, typingRepo, publisher, opts)
	typingService := service.NewTypingService(typingRepo, convRepo, userRepo, publisher, opts)

	handlers := &api.HandlersGroup{
		UserHandler:    handler.NewUserHandler(userService),
		IMHandler:      handler.NewIMHandler(imService),
		MessageHandler: handler.NewMessageHandler(messageService),
		TypingHandler:  handler.NewTypingHandler(typingService),
		WSHandler:      handler.NewWsHandler(userService, imService, typingService),
	}
	app.Router = api.SetupRouter(handlers, userService, cfg.Logstash)

	app.CronMgr = cron.NewCronManager(job.NewMemberRepairJob(convRepo), cfg.IM.RepairSpec)

	return app, nil
}
