package logger

import (
	"go.uber.org/zap"
)

// Log is a no-op until Init runs, so packages can log from tests.
var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	_ = Log.Sync()
}
