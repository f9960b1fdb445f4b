package cli

import "go.uber.org/zap"

// agentLogger wraps zap for verbose debug output. When not verbose it is
// inert and allocates nothing per call.
type agentLogger struct {
	sugared *zap.SugaredLogger
}

func newAgentLogger(globals *Globals) *agentLogger {
	if globals == nil || !globals.Verbose {
		return &agentLogger{}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	logger, _ := cfg.Build()
	return &agentLogger{sugared: logger.Sugar()}
}

func (l *agentLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	l.sugared.Debugf(format, args...)
}

// wire returns the sugared logger for the protocol client, nil when quiet.
func (l *agentLogger) wire() *zap.SugaredLogger {
	return l.sugared
}
