// Command vmcore-gdbstub serves a Linux kernel crash dump over the GDB
// Remote Serial Protocol. Grounded on cmd/dlv/main.go's single-file cobra
// root-command-plus-subcommands shape.
package main

import (
	"fmt"
	"os"

	"github.com/kdumptools/vmcore-gdbstub/pkg/gdbserver"
	"github.com/kdumptools/vmcore-gdbstub/pkg/gdbstubconfig"
	"github.com/kdumptools/vmcore-gdbstub/pkg/logflags"
	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
	"github.com/kdumptools/vmcore-gdbstub/pkg/rsp"
	"github.com/kdumptools/vmcore-gdbstub/pkg/threadmodel"
	"github.com/kdumptools/vmcore-gdbstub/pkg/vmcore"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	corePath    string
	host        string
	port        int
	processJSON string
	kernelJSON  string
	vmlinuxPath string
	verbose     bool
)

func main() {
	cfg, err := gdbstubconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmcore-gdbstub: reading config file: %v\n", err)
		os.Exit(exitUnclassified)
	}

	defaultHost := "localhost"
	if cfg.Host != "" {
		defaultHost = cfg.Host
	}
	defaultPort := 1234
	if cfg.Port != 0 {
		defaultPort = cfg.Port
	}

	rootCmd := &cobra.Command{
		Use:   "vmcore-gdbstub",
		Short: "Serve a Linux kernel crash dump over the GDB Remote Serial Protocol.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a vmcore and wait for a debugger to attach.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd.Flags().StringVarP(&corePath, "file", "f", "", "Path to the vmcore (ELF core) file.")
	serveCmd.Flags().StringVarP(&host, "address", "a", defaultHost, "Hostname to bind.")
	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "Port to bind.")
	serveCmd.Flags().StringVarP(&processJSON, "process", "j", "", "Process task-table JSON; enables process mode.")
	serveCmd.Flags().StringVarP(&kernelJSON, "kernel", "k", "", "Kernel task-table JSON; enables kernel-with-tasks mode.")
	serveCmd.Flags().StringVarP(&vmlinuxPath, "vmlinux", "v", "", "Path to vmlinux/executable, printed in GDB setup hints only.")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "d", cfg.Verbose, "Trace every RSP packet to stdout.")
	serveCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(serveCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("vmcore-gdbstub version " + version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func runServe() error {
	if processJSON != "" && kernelJSON != "" {
		return fmt.Errorf("-j and -k are mutually exclusive")
	}
	logflags.Setup(verbose)
	log := logflags.ServerLogger()

	dump, err := vmcore.Open(corePath)
	if err != nil {
		return dumpOpenError(err)
	}
	if verbose {
		log.Infof("dump: arch %s, OSRELEASE %q, PAGESIZE %d", dump.Arch(), dump.OSRelease(), dump.PageSize())
	}

	model, loadAddr, err := buildThreadModel(dump)
	if err != nil {
		return err
	}

	layout, ok := regstack.Lookup(dump.Arch())
	if !ok {
		return &StartupError{Code: exitDumpOpenFailure, Err: fmt.Errorf("unsupported architecture %q", dump.Arch())}
	}

	session := rsp.NewSession(model, memoryReader{dump}, layout)
	srv := gdbserver.New(fmt.Sprintf("%s:%d", host, port), session)
	if err := srv.Listen(); err != nil {
		return bindError(err)
	}

	printSetupHints(dump, loadAddr)
	log.Infof("waiting for incoming connection on %s", srv.Addr())
	fmt.Println("Waiting for incoming connection")

	return srv.Run()
}

// buildThreadModel dispatches to the construction mode selected by -j/-k,
// defaulting to kernel-only, and returns the relocation/load address used
// for the GDB setup hints (kernel offset in kernel modes, the sidecar's
// loadaddr in process mode).
func buildThreadModel(dump vmcore.Adapter) (*threadmodel.Model, uint64, error) {
	switch {
	case processJSON != "":
		sc, err := threadmodel.LoadSidecar(processJSON)
		if err != nil {
			return nil, 0, sidecarError(err)
		}
		m, err := threadmodel.NewProcess(dump, sc)
		if err != nil {
			return nil, 0, &StartupError{Code: exitDumpOpenFailure, Err: err}
		}
		return m, sc.LoadAddr, nil
	case kernelJSON != "":
		sc, err := threadmodel.LoadSidecar(kernelJSON)
		if err != nil {
			return nil, 0, sidecarError(err)
		}
		m, err := threadmodel.NewKernelWithTasks(dump, sc)
		if err != nil {
			return nil, 0, &StartupError{Code: exitDumpOpenFailure, Err: err}
		}
		return m, dump.KernelOffset(), nil
	default:
		m, err := threadmodel.NewKernelOnly(dump)
		if err != nil {
			return nil, 0, &StartupError{Code: exitDumpOpenFailure, Err: err}
		}
		return m, dump.KernelOffset(), nil
	}
}

// printSetupHints prints the GDB commands the user needs to attach: a
// vmlinux/executable hint line followed by "target remote".
func printSetupHints(dump vmcore.Adapter, loadAddr uint64) {
	switch {
	case processJSON != "":
		fmt.Println("# note: if the executable is position-independent (PIE), GDB needs the")
		fmt.Println("# load address below to resolve symbols correctly.")
		if vmlinuxPath != "" {
			fmt.Printf("file %s -o 0x%x\n", vmlinuxPath, loadAddr)
		}
	default:
		if dump.KernelOffset() != 0 && vmlinuxPath != "" {
			fmt.Printf("file %s -o 0x%x\n", vmlinuxPath, dump.KernelOffset())
		} else if vmlinuxPath != "" {
			fmt.Printf("file %s\n", vmlinuxPath)
		}
	}
	fmt.Printf("target remote %s:%d\n", host, port)
}

// memoryReader adapts vmcore.Adapter to rsp.MemoryReader.
type memoryReader struct {
	dump vmcore.Adapter
}

func (m memoryReader) ReadVirtual(addr uint64, size int) ([]byte, error) {
	return m.dump.Read(addr, size)
}
