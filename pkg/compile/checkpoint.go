package compile

import (
	"encoding/gob"
	"os"

	"github.com/29jm/drak-lang/pkg/ir"
)

// Checkpoint holds enough state to resume a batch compile: which
// functions are already done (with their results), which failed, and
// which remain. Mirrors pkg/result.Checkpoint's shape (a plain struct
// gob-encoded to a file) adapted from "resume a search" to "resume a
// compile batch" for the CLI's `compile` subcommand over large
// multi-function inputs.
type Checkpoint struct {
	Completed []*Result
	Failed    []FailureRecord
	Remaining []Function
}

// FailureRecord is Failure with its error flattened to a string, since
// the error interface itself isn't gob-encodable without registering
// every concrete error type that might appear.
type FailureRecord struct {
	Function string
	Message  string
}

func init() {
	gob.Register(ir.Instruction{})
	gob.Register(ir.Operand{})
	gob.Register(ir.Address{})
}

// SaveCheckpoint writes a batch's progress to path.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ckpt)
}

// LoadCheckpoint reads a batch's progress from path.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, err
	}
	return &ckpt, nil
}

// ToCheckpoint snapshots a report and the not-yet-attempted functions
// into a resumable Checkpoint.
func ToCheckpoint(r *Report, remaining []Function) *Checkpoint {
	failures := r.Failures()
	records := make([]FailureRecord, len(failures))
	for i, f := range failures {
		records[i] = FailureRecord{Function: f.Function, Message: f.Err.Error()}
	}
	return &Checkpoint{
		Completed: r.Results(),
		Failed:    records,
		Remaining: remaining,
	}
}
