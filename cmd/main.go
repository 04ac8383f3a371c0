package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	tgauth "tg_auth_back"
	"tg_auth_back/pkg/cache"
	"tg_auth_back/pkg/config"
	"tg_auth_back/pkg/handler"
	"tg_auth_back/pkg/initdata"
	"tg_auth_back/pkg/repository"
	"tg_auth_back/pkg/service"
	"tg_auth_back/pkg/token"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Infoln("Запуск сервера")
	if err := godotenv.Load(); err != nil {
		logrus.Infof("Ошибка инициализации переменных окружения .env: %s", err)
	}

	cfg, err := config.Load("configs")
	if err != nil {
		logrus.Fatalf("Ошибка конфигурации: %s", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.Infoln("Конфиг YAML инициализирован")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := initdata.NewVerifier(cfg.Telegram.BotToken)
	if err != nil {
		logrus.Fatalf("Ошибка инициализации проверки initData: %s", err)
	}

	db, err := repository.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		logrus.Fatalf("Ошибка при инициализации базы данных: %s", err)
	}
	defer db.Close()
	logrus.Info("База данных подключена")

	if err := repository.RunMigrations(ctx, db); err != nil {
		logrus.Fatalf("Ошибка миграций: %s", err)
	}

	repos := repository.NewRepository(db)
	switch cfg.Revocation.Backend {
	case config.BackendRedis:
		client, err := repository.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logrus.Fatalf("Ошибка подключения к Redis: %s", err)
		}
		defer client.Close()
		repos.RevokedToken = repository.NewRevokedTokenRedis(client)
	case config.BackendMemory:
		logrus.Warn("Отозванные refresh токены хранятся в памяти процесса")
		repos.RevokedToken = cache.NewRevokedTokens()
	default:
		if pg, ok := repos.RevokedToken.(*repository.RevokedTokenPostgres); ok && cfg.Revocation.PurgeInterval > 0 {
			go pg.PurgeLoop(ctx, cfg.Revocation.PurgeInterval)
		}
	}
	logrus.Infof("Хранилище отозванных токенов: %s", cfg.Revocation.Backend)

	tokens, err := token.NewService(token.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, repos.RevokedToken)
	if err != nil {
		logrus.Fatalf("Ошибка инициализации токенов: %s", err)
	}

	services := service.NewService(repos, verifier, tokens, cfg.DBTimeout)
	handlers := handler.NewHandler(services, cfg.AllowOrigins)

	srv := new(tgauth.Server)
	go func() {
		err := srv.Run(tgauth.ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, handlers.InitRoute())
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Ошибка при запуске сервера: %s", err)
		}
	}()
	logrus.Infof("Сервер слушает порт %s", cfg.Server.Port)

	<-ctx.Done()
	logrus.Info("Остановка сервера")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Ошибка при остановке сервера: %s", err)
	}
}
