// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/handler"
	"ahsan-gpt-go/internal/middleware"
	"ahsan-gpt-go/internal/repository"
	"ahsan-gpt-go/internal/service"
	"ahsan-gpt-go/pkg/database"
	"ahsan-gpt-go/pkg/kafka"
	"ahsan-gpt-go/pkg/llm"
	"ahsan-gpt-go/pkg/log"
	"ahsan-gpt-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")
	if cfg.LLM.APIKey == "" {
		log.Warnf("未设置 LLM_API_KEY，所有模型请求都会返回配置错误")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库和 Redis
	if err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	blacklist := repository.NewMemoryTokenBlacklist()
	persisters := repository.MemoryPersisterFactory()
	if cfg.Database.Redis.Addr != "" {
		if err := database.InitRedis(rootCtx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB); err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		blacklist = repository.NewRedisTokenBlacklist(database.RDB)
		if cfg.Chat.Persistence == "redis" {
			ttl := time.Duration(cfg.Chat.HistoryTTLH) * time.Hour
			persisters = repository.RedisPersisterFactory(database.RDB, ttl)
			log.Infof("会话持久化使用 Redis，过期时间 %s", ttl)
		}
	} else if cfg.Chat.Persistence == "redis" {
		log.Warnf("chat.persistence 为 redis 但未配置 database.redis.addr，回退到内存持久化")
	}

	// 4. 认证通知：配置了 Kafka 时写入队列，否则只记录日志
	var notifier service.AuthNotifier = service.NewLogNotifier()
	var producer *kafka.Producer
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		notifier = service.NewQueueNotifier(producer)
	}

	// 5. 初始化 Service (依赖注入)
	userRepository := repository.NewUserRepository(database.DB)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays, cfg.JWT.ActionTokenExpireHours)
	providerVerifier := token.NewProviderVerifier(cfg.Auth.ProviderName, cfg.Auth.ProviderSecret)
	authService := service.NewAuthService(userRepository, jwtManager, providerVerifier, blacklist, notifier, cfg.Auth)

	gateway := service.NewModelGateway(llm.NewClient(cfg.LLM), cfg.LLM)
	sessions := service.NewSessionRegistry(service.NewSessionFactory(cfg, gateway, persisters))

	throttle := middleware.NewIPThrottle(cfg.Throttle)
	go throttle.Run(rootCtx, 5*time.Minute, 30*time.Minute)

	// 6. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(cfg, authService, sessions, throttle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}
	if database.RDB != nil {
		_ = database.RDB.Close()
	}
	log.Info("服务已优雅关闭")
}
