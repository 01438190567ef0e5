package trace

import (
	"github.com/sarchlab/tlm/datarecording"
	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/id"
)

// Table names used by the DBTracer.
const (
	AccessTable = "access_log"
	DumpTable   = "debug_dump"
	DMITable    = "dmi_event"
)

type accessEntry struct {
	ID        string
	Component string
	Path      string
	Command   string
	Address   uint64
	Data      string
	Status    string
	Time      float64
	Delay     float64
}

type dumpEntry struct {
	ID        string
	Component string
	Address   uint64
	Data      string
	Time      float64
}

type dmiEntry struct {
	ID           string
	Component    string
	What         string
	StartAddress uint64
	EndAddress   uint64
	Time         float64
}

// A DBTracer is a hook that writes accesses, grant events, and dumped words
// into a data recorder.
type DBTracer struct {
	recorder datarecording.DataRecorder
}

// NewDBTracer creates a DBTracer and the tables it writes to.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{recorder: recorder}

	recorder.CreateTable(AccessTable, accessEntry{})
	recorder.CreateTable(DumpTable, dumpEntry{})
	recorder.CreateTable(DMITable, dmiEntry{})

	return t
}

// Func records the hook context.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	component := componentName(ctx)

	switch ctx.Pos {
	case tlm.HookPosAccess:
		t.recordAccess(component, ctx.Item.(tlm.AccessInfo))
	case tlm.HookPosDebugAccess:
		t.recordDump(component, ctx.Item.(tlm.DebugAccessInfo))
	case tlm.HookPosDMIGranted:
		t.recordDMI(component, "granted", ctx.Item.(tlm.DMIInfo))
	case tlm.HookPosDMIInvalidated:
		t.recordDMI(component, "invalidated", ctx.Item.(tlm.DMIInfo))
	}
}

func (t *DBTracer) recordAccess(component string, info tlm.AccessInfo) {
	entryID := info.PayloadID
	if entryID == "" {
		entryID = id.Generate()
	}

	t.recorder.InsertData(AccessTable, accessEntry{
		ID:        entryID,
		Component: component,
		Path:      string(info.Path),
		Command:   info.Command.String(),
		Address:   info.Address,
		Data:      formatData(info.Data),
		Status:    info.Status.String(),
		Time:      info.Time,
		Delay:     info.Delay,
	})
}

func (t *DBTracer) recordDump(component string, info tlm.DebugAccessInfo) {
	if info.Command != tlm.ReadCommand {
		return
	}

	base := wordAddress(info.Address)
	for i, word := range splitWords(info.Data) {
		t.recorder.InsertData(DumpTable, dumpEntry{
			ID:        id.Generate(),
			Component: component,
			Address:   base + uint64(i*tlm.WordSize),
			Data:      formatData(word),
			Time:      info.Time,
		})
	}
}

func (t *DBTracer) recordDMI(component, what string, info tlm.DMIInfo) {
	t.recorder.InsertData(DMITable, dmiEntry{
		ID:           id.Generate(),
		Component:    component,
		What:         what,
		StartAddress: info.StartAddress,
		EndAddress:   info.EndAddress,
		Time:         info.Time,
	})
}
