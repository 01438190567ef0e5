package trace

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
)

// A LogTracer is a hook that writes one log entry for every access, grant,
// invalidation, and dumped word.
type LogTracer struct {
	logger logrus.FieldLogger
}

// NewLogTracer creates a LogTracer that writes to logger.
func NewLogTracer(logger logrus.FieldLogger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func logs the hook context.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	entry := t.logger.WithField("component", componentName(ctx))

	switch ctx.Pos {
	case tlm.HookPosAccess:
		t.logAccess(entry, ctx.Item.(tlm.AccessInfo))
	case tlm.HookPosDebugAccess:
		t.logDebugAccess(entry, ctx.Item.(tlm.DebugAccessInfo))
	case tlm.HookPosDMIGranted:
		t.logDMI(entry, "dmi granted", ctx.Item.(tlm.DMIInfo))
	case tlm.HookPosDMIInvalidated:
		t.logDMI(entry, "dmi invalidated", ctx.Item.(tlm.DMIInfo))
	}
}

func (t *LogTracer) logAccess(entry logrus.FieldLogger, info tlm.AccessInfo) {
	entry = entry.WithFields(logrus.Fields{
		"path":    string(info.Path),
		"command": info.Command.String(),
		"address": fmt.Sprintf("0x%x", info.Address),
		"data":    formatData(info.Data),
		"time":    info.Time,
		"delay":   info.Delay,
	})

	if info.Status.IsError() {
		entry.WithField("status", info.Status.String()).Error("access")
		return
	}

	entry.Info("access")
}

func (t *LogTracer) logDebugAccess(
	entry logrus.FieldLogger,
	info tlm.DebugAccessInfo,
) {
	entry.WithFields(logrus.Fields{
		"command":     info.Command.String(),
		"address":     fmt.Sprintf("0x%x", info.Address),
		"requested":   info.Requested,
		"transferred": info.Transferred,
		"time":        info.Time,
	}).Info("debug access")

	if info.Command != tlm.ReadCommand {
		return
	}

	base := wordAddress(info.Address)
	for i, word := range splitWords(info.Data) {
		addr := base + uint64(i*tlm.WordSize)
		entry.WithFields(logrus.Fields{
			"address": fmt.Sprintf("0x%x", addr),
			"data":    formatData(word),
		}).Info("memory")
	}
}

func (t *LogTracer) logDMI(entry logrus.FieldLogger, msg string, info tlm.DMIInfo) {
	entry.WithFields(logrus.Fields{
		"start": fmt.Sprintf("0x%x", info.StartAddress),
		"end":   fmt.Sprintf("0x%x", info.EndAddress),
		"time":  info.Time,
	}).Info(msg)
}
