package main

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"lobby-pilot/applog"
	"lobby-pilot/build"
	"lobby-pilot/launcher"
	"lobby-pilot/lobby"
	"lobby-pilot/pilot"
	"lobby-pilot/util"
	"lobby-pilot/winapi"
	"os"
	"os/signal"
	"syscall"
)

var actionDescriptions = map[pilot.Action]string{
	pilot.ActionSearch:  "Collect both lobbies, start the search and recover until a match is accepted",
	pilot.ActionCollect: "Assemble two teams from the window layout and invite the bots into each lobby",
	pilot.ActionDisband: "Leave both lobbies through their first bot",
	pilot.ActionShuffle: "Randomize the accounts into two new teams and tile their windows",
	pilot.ActionArrange: "Tile the client windows left to right in team order",
	pilot.ActionEscape:  "Send Escape to every client window",
	pilot.ActionLift:    "Bring every client window to the top",
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lobby-pilot",
		Short:         "Drive several game clients through lobby assembly and matchmaking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	launcher.BindFlags(root.PersistentFlags())

	for _, action := range pilot.Actions {
		root.AddCommand(newActionCommand(action))
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildInfo().String())
		},
	})

	return root
}

func newActionCommand(action pilot.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: actionDescriptions[action],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, action)
		},
	}
}

func runAction(cmd *cobra.Command, action pilot.Action) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	info, err := launcher.Load(viper.New(), cmd.Flags())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed to read configuration: %v\n", err)
		return err
	}

	runID := uuid.NewString()
	if err = applog.Initialize(runID, info.LogLevel, info.LogPath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed to initialize app logger: %v\n", err)
	}

	defer applog.Shutdown()
	defer util.WrapAppContextCancelExitMessage(ctx, "Pilot")

	if err = info.Validate(); err != nil {
		applog.Error("Failed to validate configuration", zap.Error(err))
		return err
	}

	platform, err := winapi.New()
	if err != nil {
		applog.Error("Desktop automation is not available", zap.Error(err))
		return err
	}

	p, err := pilot.New(ctx, cancel, info, runID, platform)
	if err != nil {
		applog.Error("Failed to set up pilot", zap.Error(err))
		return err
	}
	defer p.Close()

	if info.ConsentLogSharing {
		applog.NoRemote().Info("Log sharing is enabled")
		applog.SetRemoteLogSender(p)
	} else {
		applog.NoRemote().Info("Log sharing is not enabled")
	}

	applog.LogStartupInfo(info)
	applog.Info("Build", zap.String("build", build.GetBuildInfo().String()))

	if err = p.Run(action); err != nil {
		if lobby.IsRecoveryExhausted(err) {
			applog.Error("Giving up, no match found", zap.Error(err))
		} else {
			applog.Error("Action failed", zap.String("action", string(action)), zap.Error(err))
		}
		return err
	}
	return nil
}
