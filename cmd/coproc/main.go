// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ezrec/coproc/arbsim"
	"github.com/ezrec/coproc/exec"
	"github.com/ezrec/coproc/harness"
	"github.com/ezrec/coproc/isp"
)

type stdioLink struct{}

func (stdioLink) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioLink) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func main() {
	var run string
	var args string
	var timeout time.Duration
	var conform bool
	var seed int64
	var interval time.Duration
	var serve bool
	var verbose bool

	flag.StringVar(&run, "run", "", "Script file to execute ('-' for stdin)")
	flag.StringVar(&args, "a", "", "Comma-separated integer arguments for -run")
	flag.DurationVar(&timeout, "t", 0, "Script execution timeout (0 = none)")
	flag.BoolVar(&conform, "conform", false, "Run the conformance suite against the simulated arbiter")
	flag.Int64Var(&seed, "seed", 0, "Stress stimulus seed (0 = from the clock)")
	flag.DurationVar(&interval, "interval", 0, "Conformance sampling interval (0 = default)")
	flag.BoolVar(&serve, "isp", false, "Serve STK500 on stdin/stdout against a simulated target")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	switch {
	case len(run) != 0:
		runScript(run, args, timeout, verbose)
	case conform:
		runConformance(seed, interval, verbose)
	case serve:
		runIsp(verbose)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func parseArgs(args string) (values []int32) {
	if len(args) == 0 {
		return
	}

	for _, field := range strings.Split(args, ",") {
		val, err := strconv.ParseInt(strings.TrimSpace(field), 0, 32)
		if err != nil {
			log.Fatalf("%v: %v", field, err)
		}
		values = append(values, int32(val))
	}

	return
}

func runScript(run string, args string, timeout time.Duration, verbose bool) {
	var src []byte
	var err error

	if run == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(run)
	}
	if err != nil {
		log.Fatalf("%v: %v", run, err)
	}

	ex := exec.NewExec(0)
	ex.Verbose = verbose

	ret, err := ex.RunScript(string(src), parseArgs(args), timeout)
	if err != nil {
		log.Fatalf("%v: %v (%v)", run, err, ex.State())
	}

	if mb := ex.Mailbox(); len(mb) != 0 {
		fmt.Println(mb)
	}

	os.Exit(int(ret) & 0xff)
}

func runConformance(seed int64, interval time.Duration, verbose bool) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	dev, err := arbsim.NewDevice(arbsim.Config{MaxHold: 100 * time.Millisecond})
	if err != nil {
		log.Fatal(err)
	}

	ts := &harness.Session{
		Probe:          dev,
		Verbose:        verbose,
		SampleInterval: interval,
		Seed:           seed,
	}

	if !ts.Run() {
		os.Exit(1)
	}
}

func runIsp(verbose bool) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Fatal(err)
		}
		defer term.Restore(fd, state)
	}

	sv := &isp.Server{
		Link:    stdioLink{},
		Probe:   &isp.Probe{Port: isp.NewTarget(8192), Verbose: verbose},
		Verbose: verbose,
	}

	err := sv.Serve()
	if err != nil {
		log.Fatal(err)
	}
}
