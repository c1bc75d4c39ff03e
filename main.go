package main

import (
	"context"
	"flag"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/hsit/hsit-server/config"
	"github.com/hsit/hsit-server/handler"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/hsit/hsit-server/router"
	"github.com/hsit/hsit-server/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	gin.SetMode(cfg.Server.Mode)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		zap.L().Fatal("open database", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		zap.L().Fatal("auto migrate", zap.Error(err))
	}

	userRepo := repository.NewUserRepo(db)
	poolRepo := repository.NewKeyPoolRepo(db)
	recordRepo := repository.NewUserAddressRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	botRepo := repository.NewBotRepo(db)
	wheelRepo := repository.NewWheelRepo(db)

	sealer, err := service.NewKeySealer(cfg.KeyEncryption.Secret)
	if err != nil {
		zap.L().Fatal("init key sealer", zap.Error(err))
	}

	poolSvc := service.NewKeyPoolService(poolRepo, sealer)
	assignSvc := service.NewAssignmentService(db, userRepo, poolRepo, recordRepo)
	reconcileSvc := service.NewReconcileService(db, userRepo, poolRepo, recordRepo, assignSvc)
	ledgerSvc := service.NewLedgerService(db, userRepo, ledgerRepo)
	userSvc, err := service.NewUserService(db, userRepo, ledgerSvc, cfg.JWT, cfg.Referral)
	if err != nil {
		zap.L().Fatal("init user service", zap.Error(err))
	}
	botSvc := service.NewBotService(db, botRepo, ledgerSvc)
	wheelSvc, err := service.NewWheelService(db, wheelRepo, ledgerSvc, cfg.Wheel)
	if err != nil {
		zap.L().Fatal("init wheel service", zap.Error(err))
	}

	if err := botSvc.SeedDefaults(context.Background()); err != nil {
		zap.L().Fatal("seed bot products", zap.Error(err))
	}

	r := router.SetupRouter(router.Handlers{
		Auth:    handler.NewAuthHandler(userSvc),
		Address: handler.NewAddressHandler(assignSvc, poolSvc, reconcileSvc),
		Ledger:  handler.NewLedgerHandler(ledgerSvc, assignSvc),
		Bot:     handler.NewBotHandler(botSvc),
		Wheel:   handler.NewWheelHandler(wheelSvc),
	}, cfg.JWT.Secret)

	zap.L().Info("HSIT server listening", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}
