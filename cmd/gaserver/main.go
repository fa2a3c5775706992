package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	debugFlags := &debugFlags{}
	o := &serveOpts{}

	run := func(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
		return func(cmd *cobra.Command, args []string) {
			if !debugFlags.Parse() {
				cmd.Help()
				os.Exit(1)
			}
			if err := fn(cmd, args); err != nil {
				logrus.Error(err)
				os.Exit(1)
			}
		}
	}

	cmdServe := &cobra.Command{
		Use:   "serve",
		Short: "stream the test source over rtsp",
		Args:  cobra.NoArgs,
		Run: run(func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return doServe(ctx, o)
		}),
	}
	cmdServe.Flags().StringVar(&o.pixelFormat, "pixfmt", "rgba", "test source pixel format (rgba, bgra)")
	cmdServe.Flags().Float64Var(&o.toneFreq, "tone", 440, "test tone frequency in Hz")

	cmdSDP := &cobra.Command{
		Use:   "sdp [ADDR]",
		Short: "print the session description for the configured streams",
		Args:  cobra.MaximumNArgs(1),
		Run: run(func(cmd *cobra.Command, args []string) error {
			addr := ""
			if len(args) >= 1 {
				addr = args[0]
			}
			return doSDP(o, addr)
		}),
	}

	addCommonFlags := func(fs *pflag.FlagSet) {
		fs.StringVarP(&o.configPath, "config", "c", "", "yaml config file")
		fs.StringVar(&o.logLevel, "log-level", "", "override log.level")
		debugFlags.AddOpt(fs, "drtsp", debugRtspOptsMap)
	}
	addCommonFlags(cmdServe.Flags())
	addCommonFlags(cmdSDP.Flags())

	rootCmd := &cobra.Command{Use: "gaserver"}
	rootCmd.AddCommand(cmdServe)
	rootCmd.AddCommand(cmdSDP)
	rootCmd.Execute()
}
