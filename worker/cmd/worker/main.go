package main

import (
	"os"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"slideConverter/worker/config"
	"slideConverter/worker/converter"
	"slideConverter/worker/service"
)

func main() {
	cfg := config.Load()

	// stdout carries the response, so logs go to stderr.
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	runtime.GOMAXPROCS(cfg.MaxProcs)

	logger.Debug("Worker starting", zap.Int("pid", os.Getpid()))

	processor := service.NewProcessor(converter.NewConverter(logger), logger)
	if err := processor.Serve(os.Stdin, os.Stdout); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
		os.Exit(1)
	}
}
