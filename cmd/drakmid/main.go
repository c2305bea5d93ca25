package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/compile"
	"github.com/29jm/drak-lang/pkg/ir"
	"github.com/29jm/drak-lang/pkg/irtext"
	"github.com/29jm/drak-lang/pkg/liveness"
	"github.com/29jm/drak-lang/pkg/regalloc"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drakmid",
		Short: "drakmid — ARM mid-end: SSA, liveness, and graph-coloring register allocation",
	}

	// compile command
	var numWorkers int
	var dotCFGDir string
	var jsonOutput string
	var checkpointPath string
	var verbose bool

	compileCmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Run every function in file through the mid-end pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			var fns []compile.Function
			for _, f := range prog.Functions {
				fns = append(fns, compile.Function{Name: f.Name, Instrs: f.Instrs})
			}

			if checkpointPath != "" {
				if ckpt, err := compile.LoadCheckpoint(checkpointPath); err == nil {
					fmt.Printf("Resuming from checkpoint: %d already completed, %d remaining\n",
						len(ckpt.Completed), len(ckpt.Remaining))
					fns = ckpt.Remaining
				}
			}

			fmt.Printf("Compiling %d function(s)\n", len(fns))
			pool := compile.NewPool(numWorkers)
			report := pool.RunBatch(fns, verbose)

			for _, res := range report.Results() {
				fmt.Printf("\n--- %s (spill rounds: %d) ---\n", res.Name, res.SpillRounds)
				for _, block := range res.Blocks {
					for _, in := range block {
						fmt.Println(in.String())
					}
				}
				if dotCFGDir != "" {
					if err := writeFunctionCFGDOT(dotCFGDir, res.Name, res.Blocks); err != nil {
						return err
					}
				}
			}

			for _, d := range report.Diagnostics() {
				fmt.Fprintf(os.Stderr, "diagnostic: %s: %s\n", d.Function, d.Message)
			}
			for _, f := range report.Failures() {
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", f.Function, f.Err)
			}

			if jsonOutput != "" {
				if err := writeJSONReport(jsonOutput, report); err != nil {
					return err
				}
				fmt.Printf("Written to %s\n", jsonOutput)
			}

			if checkpointPath != "" {
				ckpt := compile.ToCheckpoint(report, nil)
				if err := compile.SaveCheckpoint(checkpointPath, ckpt); err != nil {
					return err
				}
			}

			if len(report.Failures()) > 0 {
				return fmt.Errorf("%d function(s) failed to compile", len(report.Failures()))
			}
			return nil
		},
	}
	compileCmd.Flags().IntVar(&numWorkers, "workers", 0, "Number of workers (0 = NumCPU)")
	compileCmd.Flags().StringVar(&dotCFGDir, "dot-cfg", "", "Directory to write one post-allocation CFG .dot file per function")
	compileCmd.Flags().StringVar(&jsonOutput, "json", "", "Output JSON report path")
	compileCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file for batch resume")
	compileCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print progress every 5 seconds")

	// dot command
	var dotFunc string
	var dotIGraph bool

	dotCmd := &cobra.Command{
		Use:   "dot [file]",
		Short: "Print the CFG (or, with --igraph, the pre-coloring interference graph) as Graphviz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			for _, f := range prog.Functions {
				if dotFunc != "" && f.Name != dotFunc {
					continue
				}
				g, err := cfg.Build(f.Instrs)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
				if dotIGraph {
					live := liveness.Compute(g)
					graph := regalloc.Build(live.PerInstr)
					fmt.Println(graph.DOT(nil))
				} else {
					live := liveness.Compute(g)
					fmt.Println(g.DOT(liveInMap(live)))
				}
			}
			return nil
		},
	}
	dotCmd.Flags().StringVar(&dotFunc, "function", "", "Only render the named function")
	dotCmd.Flags().BoolVar(&dotIGraph, "igraph", false, "Render the interference graph instead of the CFG")

	// check command
	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Compile every function and verify the output contract's invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			violations := 0
			for _, f := range prog.Functions {
				res, err := compile.Compile(compile.Function{Name: f.Name, Instrs: f.Instrs})
				if err != nil {
					fmt.Printf("FAIL %s: %v\n", f.Name, err)
					violations++
					continue
				}
				if msg, ok := checkOutputContract(res); !ok {
					fmt.Printf("FAIL %s: %s\n", f.Name, msg)
					violations++
					continue
				}
				fmt.Printf("PASS %s (spill rounds: %d)\n", f.Name, res.SpillRounds)
			}
			if violations > 0 {
				return fmt.Errorf("%d function(s) violated the output contract", violations)
			}
			return nil
		},
	}

	rootCmd.AddCommand(compileCmd, dotCmd, checkCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadProgram(path string) (*irtext.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := irtext.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return prog, nil
}

func liveInMap(live liveness.Result) map[int]ir.VarSet {
	m := make(map[int]ir.VarSet, len(live.LiveIn))
	for i, s := range live.LiveIn {
		m[i] = s
	}
	return m
}

// checkOutputContract verifies spec §6's output contract: no virtual
// registers, no PHI, no memload/memstore pseudo-ops surviving EMIT.
func checkOutputContract(res *compile.Result) (string, bool) {
	for _, block := range res.Blocks {
		for _, in := range block {
			if in.Op == ir.OpPhi {
				return fmt.Sprintf("PHI survived: %s", in), false
			}
			if in.Op == ir.OpMemLoad || in.Op == ir.OpMemStore {
				return fmt.Sprintf("pseudo-op survived EMIT: %s", in), false
			}
			for _, o := range in.Operands {
				if o.Kind == ir.OperandVar {
					return fmt.Sprintf("virtual register survived: %s", in), false
				}
			}
		}
	}
	return "", true
}

func writeFunctionCFGDOT(dir, name string, blocks [][]ir.Instruction) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	flat := flatten(blocks)
	g, err := cfg.Build(flat)
	if err != nil {
		return err
	}
	path := dir + "/" + name + ".cfg.dot"
	return os.WriteFile(path, []byte(g.DOT(nil)), 0o644)
}

func flatten(blocks [][]ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// jsonFunction is compile.Result rendered into a JSON-friendly shape:
// instructions as their textual form rather than the tagged Operand
// struct, matching the teacher's result.WriteJSON habit of emitting
// assembly text fields rather than raw structs.
type jsonFunction struct {
	Name         string   `json:"name"`
	SpillRounds  int      `json:"spill_rounds"`
	Instructions []string `json:"instructions"`
}

type jsonReport struct {
	Functions []jsonFunction    `json:"functions"`
	Failures  map[string]string `json:"failures,omitempty"`
}

func writeJSONReport(path string, report *compile.Report) error {
	var out jsonReport
	for _, res := range report.Results() {
		jf := jsonFunction{Name: res.Name, SpillRounds: res.SpillRounds}
		for _, in := range flatten(res.Blocks) {
			jf.Instructions = append(jf.Instructions, in.String())
		}
		out.Functions = append(out.Functions, jf)
	}
	if failures := report.Failures(); len(failures) > 0 {
		out.Failures = make(map[string]string, len(failures))
		for _, f := range failures {
			out.Failures[f.Function] = f.Err.Error()
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
