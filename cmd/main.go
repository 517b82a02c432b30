package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/constant"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/log"
	"github.com/xeptore/spotwrap/must"
)

const (
	flagConfigFilePath = "config"
	flagDebug          = "debug"
)

func main() {
	logger := log.NewPretty(os.Stderr).Level(zerolog.TraceLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	configFlag := &cli.StringFlag{ //nolint:exhaustruct
		Name:     flagConfigFilePath,
		Aliases:  []string{"c"},
		Usage:    "Config file path",
		Required: false,
	}
	debugFlag := &cli.BoolFlag{ //nolint:exhaustruct
		Name:  flagDebug,
		Usage: "Dump failure details as YAML to stderr",
	}

	//nolint:exhaustruct
	app := &cli.App{
		Name:     "spotwrap",
		Version:  constant.Version,
		Compiled: constant.CompileTime,
		Suggest:  true,
		Usage:    "Spotify catalog aggregation facade",
		Flags:    []cli.Flag{configFlag, debugFlag},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Serve the HTTP facade",
				Action:  serve,
			},
			//nolint:exhaustruct
			{
				Name:      "artist-tracks",
				Usage:     "Print every track credited to an artist",
				ArgsUsage: "ARTIST_ID",
				Action:    query(opArtistTracks),
			},
			//nolint:exhaustruct
			{
				Name:      "playlist-tracks",
				Usage:     "Print every track of a playlist",
				ArgsUsage: "PLAYLIST_ID",
				Action:    query(opPlaylistTracks),
			},
			//nolint:exhaustruct
			{
				Name:      "artist-info",
				Usage:     "Print an artist with its albums and tracks",
				ArgsUsage: "ARTIST_ID",
				Action:    query(opArtistInfo),
			},
			//nolint:exhaustruct
			{
				Name:  "search",
				Usage: "Search the catalog",
				Subcommands: []*cli.Command{
					{Name: "artist", ArgsUsage: "QUERY", Action: query(opSearchArtist)},     //nolint:exhaustruct
					{Name: "album", ArgsUsage: "QUERY", Action: query(opSearchAlbum)},       //nolint:exhaustruct
					{Name: "playlist", ArgsUsage: "QUERY", Action: query(opSearchPlaylist)}, //nolint:exhaustruct
				},
			},
		},
	}

	if err := app.Run(os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			return
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

func dumpFlaw(logger zerolog.Logger, err error) {
	flawBytes, yamlErr := errutil.FlawToYAML(must.BeFlaw(err))
	if nil != yamlErr {
		logger.Error().Func(log.Flaw(yamlErr)).Msg("Failed to convert flaw to YAML")
		return
	}
	if _, writeErr := os.Stderr.Write(flawBytes); nil != writeErr {
		logger.Error().Err(writeErr).Msg("Failed to write flaw dump")
	}
}

func loadConfig(cliCtx *cli.Context, logger zerolog.Logger) (*config.Config, error) {
	var (
		cfgEnv      = os.Getenv("CONFIG")
		cfgFilePath = cliCtx.String(flagConfigFilePath)
	)
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return nil, errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		cfg, err := config.FromFile(cfgFilePath)
		if nil != err {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
		return cfg, nil
	case cfgEnv != "":
		logger.Debug().Msg("Loading config from environment variable")
		cfg, err := config.FromString(cfgEnv)
		if nil != err {
			return nil, fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		return cfg, nil
	default:
		logger.Debug().Msg("No config specified. Using defaults")
		cfg := config.Default()
		return &cfg, nil
	}
}
