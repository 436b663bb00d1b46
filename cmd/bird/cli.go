package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/zheli/bird/internal/config"
	"github.com/zheli/bird/internal/creds"
	"github.com/zheli/bird/internal/twitter"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "bird",
		Usage:   "Read and post tweets with a browser session",
		Version: Version,
		Commands: []*cli.Command{
			whoamiCmd(cfg),
			readCmd(cfg),
			threadCmd(cfg),
			repliesCmd(cfg),
			searchCmd(cfg),
			tweetsCmd(cfg),
			mentionsCmd(cfg),
			likesCmd(cfg),
			bookmarksCmd(cfg),
			followingCmd(cfg),
			followersCmd(cfg),
			listsCmd(cfg),
			listTimelineCmd(cfg),
			postCmd(cfg),
			deleteCmd(cfg),
			refreshIDsCmd(cfg),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// buildClient assembles the client stack: credentials from the environment,
// the identifier store under ~/.bird, and options from config.
func buildClient(cfg *config.Config) (*twitter.Client, error) {
	cr, warnings, err := creds.Resolve()
	for _, w := range warnings {
		log.Printf("[WARN] %s", w)
	}
	if err != nil {
		return nil, err
	}

	store := twitter.NewStore(twitter.DefaultCachePath(), cfg.QueryIDTTL(), twitter.NewDiscoverer(nil))
	opts := twitter.Options{
		APIBase:    cfg.APIBase,
		Timeout:    cfg.Timeout(),
		PageSize:   cfg.PageSize,
		QuoteDepth: cfg.QuoteDepth,
		IncludeRaw: cfg.IncludeRaw,
	}
	return twitter.NewClient(cr.AuthToken, cr.CT0, store, opts)
}

func paginationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Usage: "Number of items to fetch"},
		&cli.BoolFlag{Name: "all", Usage: "Fetch until the stream is exhausted"},
		&cli.StringFlag{Name: "cursor", Usage: "Resume cursor from a previous run"},
		&cli.IntFlag{Name: "max-pages", Usage: "Hard cap on pages fetched"},
	}
}

func paginationOpts(c *cli.Context) twitter.PaginationOptions {
	return twitter.PaginationOptions{
		Count:    c.Int("count"),
		All:      c.Bool("all"),
		Cursor:   c.String("cursor"),
		MaxPages: c.Int("max-pages"),
	}
}

func requireArg(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", outputError(fmt.Errorf("%s is required", name))
	}
	return v, nil
}

func whoamiCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Identify the authenticated account",
		Action: func(c *cli.Context) error {
			client, err := buildClient(cfg)
			if err != nil {
				return outputError(err)
			}
			user, err := client.CurrentUser(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"user": user})
		},
	}
}

func readCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Fetch a single tweet by id",
		ArgsUsage: "<tweet-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "tweet id")
			if err != nil {
				return err
			}
			client, err := buildClient(cfg)
			if err != nil {
				return outputError(err)
			}
			tweet, err := client.GetTweet(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"tweet": tweet})
		},
	}
}

func threadCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "thread",
		Usage:     "Fetch the conversation thread a tweet belongs to",
		ArgsUsage: "<tweet-id>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "tweet id")
			if err != nil {
				return err
			}
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetThread(ctx, id, paginationOpts(c))
			})
		},
	}
}

func repliesCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "replies",
		Usage:     "Fetch direct replies to a tweet",
		ArgsUsage: "<tweet-id>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "tweet id")
			if err != nil {
				return err
			}
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetReplies(ctx, id, paginationOpts(c))
			})
		},
	}
}

func searchCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search latest tweets with a raw query",
		ArgsUsage: "<query>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return outputError(fmt.Errorf("query is required"))
			}
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.Search(ctx, query, paginationOpts(c))
			})
		},
	}
}

func tweetsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "tweets",
		Usage:     "Fetch a user's tweets",
		ArgsUsage: "<username>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			username, err := requireArg(c, "username")
			if err != nil {
				return err
			}
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetUserTweets(ctx, strings.TrimPrefix(username, "@"), paginationOpts(c))
			})
		},
	}
}

func mentionsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mentions",
		Usage: "Fetch tweets mentioning the authenticated account",
		Flags: paginationFlags(),
		Action: func(c *cli.Context) error {
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetMentions(ctx, paginationOpts(c))
			})
		},
	}
}

func likesCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "likes",
		Usage: "Fetch the authenticated account's liked tweets",
		Flags: paginationFlags(),
		Action: func(c *cli.Context) error {
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetLikes(ctx, paginationOpts(c))
			})
		},
	}
}

func bookmarksCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "bookmarks",
		Usage: "Fetch the authenticated account's bookmarks",
		Flags: append(paginationFlags(),
			&cli.StringFlag{Name: "folder", Usage: "Bookmark folder id"},
		),
		Action: func(c *cli.Context) error {
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetBookmarks(ctx, c.String("folder"), paginationOpts(c))
			})
		},
	}
}

func followingCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "following",
		Usage:     "Fetch accounts a user follows",
		ArgsUsage: "<username>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			username, err := requireArg(c, "username")
			if err != nil {
				return err
			}
			return runUserPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.UserPage, error) {
				return client.GetFollowing(ctx, strings.TrimPrefix(username, "@"), paginationOpts(c))
			})
		},
	}
}

func followersCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "followers",
		Usage:     "Fetch a user's followers",
		ArgsUsage: "<username>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			username, err := requireArg(c, "username")
			if err != nil {
				return err
			}
			return runUserPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.UserPage, error) {
				return client.GetFollowers(ctx, strings.TrimPrefix(username, "@"), paginationOpts(c))
			})
		},
	}
}

func listsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Fetch lists owned by the authenticated account",
		Flags: append(paginationFlags(),
			&cli.BoolFlag{Name: "memberships", Usage: "Fetch list memberships instead of ownerships"},
		),
		Action: func(c *cli.Context) error {
			client, err := buildClient(cfg)
			if err != nil {
				return outputError(err)
			}
			var page *twitter.ListPage
			if c.Bool("memberships") {
				page, err = client.GetListMemberships(c.Context, paginationOpts(c))
			} else {
				page, err = client.GetLists(c.Context, paginationOpts(c))
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"lists": page.Lists, "nextCursor": page.NextCursor})
		},
	}
}

func listTimelineCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "list-timeline",
		Usage:     "Fetch the latest tweets of a list",
		ArgsUsage: "<list-id>",
		Flags:     paginationFlags(),
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "list id")
			if err != nil {
				return err
			}
			return runTweetPage(c, cfg, func(ctx context.Context, client *twitter.Client) (*twitter.TweetPage, error) {
				return client.GetListTimeline(ctx, id, paginationOpts(c))
			})
		},
	}
}

func postCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Post a tweet",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reply-to", Usage: "Tweet id to reply to"},
			&cli.StringSliceFlag{Name: "media", Usage: "Path of a media file to attach (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return outputError(fmt.Errorf("text is required"))
			}
			client, err := buildClient(cfg)
			if err != nil {
				return outputError(err)
			}

			mediaIDs, err := uploadMediaFiles(c.Context, client, c.StringSlice("media"))
			if err != nil {
				return outputError(err)
			}

			result, err := client.CreateTweet(c.Context, text, twitter.PostOptions{
				InReplyTo: c.String("reply-to"),
				MediaIDs:  mediaIDs,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"tweet": result})
		},
	}
}

func deleteCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a tweet by id",
		ArgsUsage: "<tweet-id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "tweet id")
			if err != nil {
				return err
			}
			client, err := buildClient(cfg)
			if err != nil {
				return outputError(err)
			}
			if err := client.DeleteTweet(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": id})
		},
	}
}

func refreshIDsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "refresh-ids",
		Usage: "Force a query identifier refresh and show the snapshot",
		Action: func(c *cli.Context) error {
			store := twitter.NewStore(twitter.DefaultCachePath(), cfg.QueryIDTTL(), twitter.NewDiscoverer(nil))
			info, err := store.Refresh(c.Context, twitter.OperationNames(), true)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"fetchedAt": info.Snapshot.FetchedAt,
				"fresh":     info.Fresh,
				"ids":       info.Snapshot.IDs,
			})
		},
	}
}

func runTweetPage(c *cli.Context, cfg *config.Config, fetch func(context.Context, *twitter.Client) (*twitter.TweetPage, error)) error {
	client, err := buildClient(cfg)
	if err != nil {
		return outputError(err)
	}
	page, err := fetch(c.Context, client)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(map[string]any{"tweets": page.Tweets, "nextCursor": page.NextCursor})
}

func runUserPage(c *cli.Context, cfg *config.Config, fetch func(context.Context, *twitter.Client) (*twitter.UserPage, error)) error {
	client, err := buildClient(cfg)
	if err != nil {
		return outputError(err)
	}
	page, err := fetch(c.Context, client)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(map[string]any{"users": page.Users, "nextCursor": page.NextCursor})
}

func uploadMediaFiles(ctx context.Context, client *twitter.Client, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		result, err := client.UploadMedia(ctx, data, mediaContentType(path))
		if err != nil {
			return nil, err
		}
		ids = append(ids, result.MediaID)
	}
	return ids, nil
}

func mediaContentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".mp4"):
		return "video/mp4"
	default:
		return "image/jpeg"
	}
}

// outputJSON prints the success envelope.
func outputJSON(payload map[string]any) error {
	out := map[string]any{"success": true}
	for k, v := range payload {
		out[k] = v
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// outputError prints the failure envelope and signals a non-zero exit.
func outputError(err error) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"success": false, "error": err.Error()})
	return cli.Exit("", 1)
}
