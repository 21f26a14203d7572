package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"audiobot/internal/tag"
	"audiobot/pkg/utils"
)

func main() {
	app := &cli.Command{
		Name:    "audiobot",
		Usage:   "Turn Spotify and YouTube track links into MP3s",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify that external dependencies are installed",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := utils.CheckDependencies(); err != nil {
				return err
			}
			fmt.Println("yt-dlp and ffmpeg found")
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the embedded tags of an MP3 file",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.StringArg("path")
			if path == "" {
				return fmt.Errorf("path argument is required")
			}

			meta, err := tag.Read(path)
			if err != nil {
				return err
			}

			fmt.Printf("Track:  %s\n", meta.DisplayName())
			if meta.Album != "" {
				fmt.Printf("Album:  %s\n", meta.Album)
			}
			fmt.Printf("Cover:  %v\n", tag.HasCover(path))
			return nil
		},
	}
}
