package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/signaling"
	"github.com/aliboard/aliboard-server/types"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// A very simple CLI tool for the administration of aliboard rooms, chat
// history and signaling sessions.

var (
	configPath string

	globalConfig *config.Config
	persister    persistence.Persister
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "aliboard-admin",
		Short:         "administration tool for the aliboard session server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flagSet := config.GetFlagSet()
			pflag.CommandLine.AddFlagSet(flagSet)
			var err error
			globalConfig, err = config.ReadConfiguration(configPath, flagSet)
			if err != nil {
				return err
			}
			if globalConfig.LogLevel != "" {
				globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
			}
			persister, err = persistence.NewPersister(globalConfig)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if persister != nil {
				persister.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")

	rootCmd.AddCommand(roomsCmd(), roomCmd(), chatCmd(), signalCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func requirePersister() error {
	if persister == nil {
		return fmt.Errorf("no persistence configured")
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "list all known rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePersister(); err != nil {
				return err
			}
			rooms, err := persister.GetRooms()
			if err != nil {
				return err
			}
			return printJSON(rooms)
		},
	}
}

func roomCmd() *cobra.Command {
	var teacherId, studentId string
	cmd := &cobra.Command{
		Use:   "room",
		Short: "inspect or modify one room",
	}
	show := &cobra.Command{
		Use:   "show <room-id>",
		Short: "print the persisted board snapshot of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePersister(); err != nil {
				return err
			}
			state, err := persister.LoadSnapshot(args[0])
			if err == persistence.ErrNotFound {
				return fmt.Errorf("no snapshot for room %s", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	roster := &cobra.Command{
		Use:   "set-roster <room-id>",
		Short: "set the teacher/student roster of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePersister(); err != nil {
				return err
			}
			room := &types.Room{Id: args[0], Tags: make(map[string]string)}
			if err := persister.GetRoom(room); err != nil && err != persistence.ErrNotFound {
				return err
			}
			if teacherId != "" {
				room.TeacherId = teacherId
			}
			if studentId != "" {
				room.StudentId = studentId
			}
			return persister.StoreRoom(*room)
		},
	}
	roster.Flags().StringVar(&teacherId, "teacher", "", "teacher user id")
	roster.Flags().StringVar(&studentId, "student", "", "student user id")
	cmd.AddCommand(show, roster)
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "inspect chat history",
	}
	tail := &cobra.Command{
		Use:   "tail <room-id> [count]",
		Short: "print the most recent chat messages of a room",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePersister(); err != nil {
				return err
			}
			limit := 20
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return err
				}
				limit = n
			}
			messages, err := persister.RecentChat(args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(messages)
		},
	}
	cmd.AddCommand(tail)
	return cmd
}

func signalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "inspect or clear signaling state (file-backed cache only)",
	}
	clear := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "clear offer, answer and lock of a signaling session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := signaling.NewCache(globalConfig)
			if err != nil {
				return err
			}
			defer cache.Close()
			return cache.Hangup(args[0])
		},
	}
	debug := &cobra.Command{
		Use:   "debug <session-id>",
		Short: "print the current state of a signaling session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := signaling.NewCache(globalConfig)
			if err != nil {
				return err
			}
			defer cache.Close()
			state, err := cache.Debug(args[0])
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	cmd.AddCommand(clear, debug)
	return cmd
}
