// Package logger provides the shared zap logger.
package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/config"
)

var Module = fx.Module("logger",
	fx.Provide(New),
)

// New builds the process logger. Development environments get the console
// encoder; everything else logs JSON at info level.
func New(cfg config.Config) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if cfg.IsProduction() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("service", cfg.ServiceName))
	zap.ReplaceGlobals(log)
	return log, nil
}
