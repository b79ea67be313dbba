package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meetmic/internal/domain"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "meetmic",
	Short: "Virtual microphone routines for a conferencing client",
	Long: `meetmic finds a software-loopback microphone, acquires it for the
current session and reports the acquired stream to the conferencing client.`,
	SilenceUsage: true,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio inputs and mark the ones the matcher accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), listDevices)
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Select the virtual microphone and publish it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			selected, published := a.controller.Activate(ctx)
			fmt.Println(selected.String())
			if !selected.OK() {
				return selected.Err()
			}
			fmt.Println(published.String())
			if !published.OK() {
				return published.Err()
			}
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Select the virtual microphone, then report the session stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if selected := a.controller.SetupVirtualMicrophone(ctx); !selected.OK() {
				fmt.Println(selected.String())
			}
			published := a.controller.PublishActiveMicrophone(ctx)
			fmt.Println(published.String())
			if !published.OK() {
				return published.Err()
			}
			return nil
		})
	},
}

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Turn the camera off through the page controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			outcome := a.controller.DisableCamera(ctx)
			fmt.Println(outcome.String())
			if outcome == domain.CameraNotFound {
				return fmt.Errorf("camera control unavailable")
			}
			return nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), serve)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meetmic v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults are used when empty)")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(cameraCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
