package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/echofeed/internal/config"
	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/feed"
	"github.com/hpungsan/echofeed/internal/narrative"
	"github.com/hpungsan/echofeed/internal/speech"
	"github.com/hpungsan/echofeed/internal/store"
	"github.com/hpungsan/echofeed/internal/watch"
	"github.com/hpungsan/echofeed/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "echofeed",
		Usage:   "Local feed reader with text to speech",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(db, cfg),
			searchCmd(db, cfg),
			showCmd(db, cfg),
			flattenCmd(db, cfg),
			speakCmd(db, cfg),
			importCmd(db),
			postsCmd(db),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the feed UI web server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Listen port"},
			&cli.StringFlag{Name: "posts", Usage: "Posts JSON file (defaults to config posts_path, then the archive)"},
			&cli.BoolFlag{Name: "watch", Usage: "Reload when the posts file changes"},
			&cli.StringFlag{Name: "tts", Usage: "Speech synthesis endpoint (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			lib, err := loadLibrary(db, cfg, c.String("posts"))
			if err != nil {
				// A bad posts file serves an empty feed rather than
				// refusing to start; a later --watch reload can recover.
				log.Printf("failed to load posts: %v (serving empty feed)", err)
				lib = feed.New(nil)
			}

			session := feed.NewSession(lib, cfg)

			endpoint := cfg.TTSEndpoint
			if c.String("tts") != "" {
				endpoint = c.String("tts")
			}
			orch := speech.NewOrchestrator(speech.NewStateSink(), speech.NewHTTPSynthesizer(endpoint))

			if c.Bool("watch") {
				path := postsPath(cfg, c.String("posts"))
				w, err := watch.New(path, 0, func() {
					reloaded, err := feed.LoadFile(path)
					if err != nil {
						log.Printf("reload %s: %v", path, err)
						return
					}
					session.ReplaceLibrary(reloaded)
					log.Printf("reloaded %d posts from %s", reloaded.Len(), path)
				})
				if err != nil {
					return outputError(err)
				}
				w.Start()
				defer w.Close()
			}

			srv := web.NewServer(session, orch, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search posts by substring (empty query lists all)",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "posts", Usage: "Posts JSON file"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results (default 20, max 100)"},
			&cli.IntFlag{Name: "offset", Usage: "Results to skip"},
		},
		Action: func(c *cli.Context) error {
			lib, err := loadLibrary(db, cfg, c.String("posts"))
			if err != nil {
				return outputError(err)
			}

			output := feed.Search(lib, feed.SearchInput{
				Query:  c.Args().First(),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a post's full narrative by URL",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "posts", Usage: "Posts JSON file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("url argument is required"))
			}

			lib, err := loadLibrary(db, cfg, c.String("posts"))
			if err != nil {
				return outputError(err)
			}

			post, err := lib.Get(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(post)
		},
	}
}

// flattenCmd creates the flatten command.
func flattenCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "flatten",
		Usage:     "Print a post's narrative as plain speakable text",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "posts", Usage: "Posts JSON file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("url argument is required"))
			}

			lib, err := loadLibrary(db, cfg, c.String("posts"))
			if err != nil {
				return outputError(err)
			}

			post, err := lib.Get(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			fmt.Println(post.FlattenText())
			return nil
		},
	}
}

// speakCmd creates the speak command.
func speakCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "speak",
		Usage:     "Synthesize a post's text and write the audio to a file",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "posts", Usage: "Posts JSON file"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "speech.wav", Usage: "Output audio file"},
			&cli.StringFlag{Name: "tts", Usage: "Speech synthesis endpoint (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("url argument is required"))
			}

			lib, err := loadLibrary(db, cfg, c.String("posts"))
			if err != nil {
				return outputError(err)
			}

			post, err := lib.Get(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			text := post.FlattenText()
			if text == "" {
				return outputError(errors.NewEmptySpeech(post.URL))
			}

			endpoint := cfg.TTSEndpoint
			if c.String("tts") != "" {
				endpoint = c.String("tts")
			}

			synth := speech.NewHTTPSynthesizer(endpoint)
			audio, contentType, err := synth.Synthesize(context.Background(), text)
			if err != nil {
				return outputError(errors.NewSynthesisFailed(err))
			}

			outPath := c.String("out")
			if err := os.WriteFile(outPath, audio, 0o644); err != nil {
				return outputError(errors.NewInternal(err))
			}

			return outputJSON(map[string]any{
				"url":          post.URL,
				"out":          outPath,
				"content_type": contentType,
				"bytes":        len(audio),
				"chars":        post.TotalTextLength(),
			})
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a posts JSON file into the archive (reads stdin if no file given)",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			var posts []narrative.Post

			if c.NArg() > 0 {
				lib, err := feed.LoadFile(c.Args().First())
				if err != nil {
					return outputError(err)
				}
				posts = lib.Posts()
			} else {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("pass a posts file or pipe JSON via stdin"))
				}
				lib, err := feed.LoadReader(os.Stdin)
				if err != nil {
					return outputError(err)
				}
				posts = lib.Posts()
			}

			result, err := store.ImportPosts(db, posts)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// postsCmd creates the posts command.
func postsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "posts",
		Usage: "List archived post summaries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Usage: "Results to skip"},
		},
		Action: func(c *cli.Context) error {
			items, total, err := store.ListSummaries(db, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"items": items,
				"total": total,
			})
		},
	}
}

// postsPath resolves the posts file path: flag first, then config.
func postsPath(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.PostsPath
}

// loadLibrary loads posts from the posts file if it exists, falling back
// to the archive.
func loadLibrary(db *sql.DB, cfg *config.Config, flag string) (*feed.Library, error) {
	path := postsPath(cfg, flag)

	if _, err := os.Stat(path); err == nil {
		return feed.LoadFile(path)
	} else if flag != "" {
		// An explicitly named file must exist
		return nil, errors.NewInvalidRequest(fmt.Sprintf("posts file not found: %s", flag))
	}

	posts, err := store.LoadPosts(db)
	if err != nil {
		return nil, err
	}
	return feed.New(posts), nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if feedErr, ok := err.(*errors.FeedError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", feedErr.Code, feedErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
