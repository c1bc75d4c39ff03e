// reconcile is the offline batch tool that detects and repairs drift
// between the key pool, user address records and the legacy wallet
// mirror. Run it manually after migrations or incident cleanup; it is
// never scheduled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hsit/hsit-server/config"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/hsit/hsit-server/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "scan and report only, repair nothing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

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
	assignSvc := service.NewAssignmentService(db, userRepo, poolRepo, recordRepo)
	reconcileSvc := service.NewReconcileService(db, userRepo, poolRepo, recordRepo, assignSvc)

	ctx := context.Background()

	if *dryRun {
		duplicates, err := reconcileSvc.ScanDuplicates(ctx)
		if err != nil {
			zap.L().Fatal("duplicate scan failed", zap.Error(err))
		}
		legacy, err := reconcileSvc.ScanLegacy(ctx)
		if err != nil {
			zap.L().Fatal("legacy scan failed", zap.Error(err))
		}
		dump(append(duplicates, legacy...))
		fmt.Printf("dry run: %d duplicate findings, %d legacy findings, nothing repaired\n",
			len(duplicates), len(legacy))
		return
	}

	report, err := reconcileSvc.ReconcileAll(ctx)
	if err != nil {
		zap.L().Fatal("reconciliation failed", zap.Error(err))
	}
	dump(report)
}

func dump(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("failed to encode report", zap.Error(err))
	}
}
