package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()

func Init(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	}

	// stdout belongs to the presentation; diagnostics go to stderr
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return
	}

	Log = l
}

func Sync() {
	_ = Log.Sync()
}
