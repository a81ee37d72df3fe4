// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/kinocore/kinocore/internal/catalog"
	"github.com/kinocore/kinocore/internal/config"
	"github.com/kinocore/kinocore/internal/favorite"
	"github.com/kinocore/kinocore/internal/identity"
	kclog "github.com/kinocore/kinocore/internal/log"
	"github.com/kinocore/kinocore/internal/progress"
	"github.com/kinocore/kinocore/internal/rating"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

const usage = `kinocore - movie catalog client

Usage:
  kinocore [flags] <command> [args]

Commands:
  movies [query]            list movies, optionally filtered by title
  detail <movieID>          show a movie with its comments
  continue                  list movies with a saved playback position
  favorite <movieID>        toggle the favorite state of a movie
  favorites                 list the viewer's favorite movies
  comment <movieID> <rating> <text...>
                            post a comment and refresh the rating
  login <userID> <name> <token>
                            persist a session
  logout                    clear the session

Flags:
`

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kinocore: %v\n", err)
		os.Exit(1)
	}

	kclog.Configure(kclog.Config{
		Level:   cfg.LogLevel,
		Service: "kinocore",
	})
	logger := kclog.WithComponent("cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ids, err := identity.NewManager(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open identity store")
	}
	viewer, err := ids.Current()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load viewer")
	}

	client := catalog.New(catalog.Options{
		CatalogURL: cfg.CatalogURL,
		AuthURL:    cfg.EffectiveAuthURL(),
		Token:      viewer.Token,
		Timeout:    cfg.HTTPTimeout,
	})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "movies":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		err = runMovies(ctx, client, query)
	case "detail":
		err = withMovieID(args, func(id int64) error {
			return runDetail(ctx, client, id)
		})
	case "continue":
		err = runContinue(ctx, cfg, client, viewer)
	case "favorite":
		err = withMovieID(args, func(id int64) error {
			return runFavorite(ctx, client, viewer, id)
		})
	case "favorites":
		err = runFavorites(ctx, client, viewer)
	case "comment":
		err = runComment(ctx, client, viewer, args[1:])
	case "login":
		err = runLogin(ids, args[1:])
	case "logout":
		err = ids.Logout()
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("command", args[0]).Msg("command failed")
		fmt.Fprintf(os.Stderr, "kinocore: %v\n", err)
		os.Exit(1)
	}
}

func withMovieID(args []string, fn func(int64) error) error {
	if len(args) < 2 {
		return fmt.Errorf("missing movie id")
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid movie id %q", args[1])
	}
	return fn(id)
}

func runMovies(ctx context.Context, client *catalog.Client, query string) error {
	movies, err := client.Movies(ctx, query)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tYEAR\tGENRE\tRATING")
	for _, m := range movies {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.1f\n", m.ID, m.Title, m.Year, m.Genre, m.Rating)
	}
	return w.Flush()
}

func runDetail(ctx context.Context, client *catalog.Client, id int64) error {
	movie, comments, err := client.MovieDetail(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d)\n", movie.Title, movie.Year)
	fmt.Printf("  director: %s\n  genre: %s\n  rating: %.1f\n", movie.Director, movie.Genre, movie.Rating)
	if movie.Description != "" {
		fmt.Printf("  %s\n", movie.Description)
	}
	fmt.Printf("comments (%d):\n", len(comments))
	for _, c := range comments {
		fmt.Printf("  [%.0f/10] %s: %s\n", c.Rating, c.UserName, c.Text)
	}
	return nil
}

func runContinue(ctx context.Context, cfg config.Config, client *catalog.Client, viewer identity.Viewer) error {
	store, err := progress.Open(progress.Config{
		Backend:   cfg.ProgressBackend,
		Dir:       cfg.DataDir,
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, viewer.Key())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("nothing in progress")
		return nil
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return entries[ids[i]].UpdatedAt.After(entries[ids[j]].UpdatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPOSITION\tUPDATED")
	for _, id := range ids {
		e := entries[id]
		title := fmt.Sprintf("movie %d", id)
		if movie, err := client.MovieByID(ctx, id); err == nil {
			title = movie.Title
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, title, formatSeconds(e.Seconds), e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func formatSeconds(s float64) string {
	total := int(s)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func runFavorite(ctx context.Context, client *catalog.Client, viewer identity.Viewer, movieID int64) error {
	tog := favorite.New(client, viewer, movieID, nil)
	if err := tog.Refresh(ctx); err != nil {
		return err
	}
	if err := tog.Toggle(ctx); err != nil {
		return err
	}
	if tog.Favorited() {
		fmt.Printf("movie %d added to favorites\n", movieID)
	} else {
		fmt.Printf("movie %d removed from favorites\n", movieID)
	}
	return nil
}

func runFavorites(ctx context.Context, client *catalog.Client, viewer identity.Viewer) error {
	if !viewer.Authenticated() {
		return fmt.Errorf("favorites require a login")
	}
	favorites, err := client.FavoritesByViewer(ctx, viewer.UserID)
	if err != nil {
		return err
	}
	if len(favorites) == 0 {
		fmt.Println("no favorites")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tADDED")
	for _, f := range favorites {
		title := fmt.Sprintf("movie %d", f.MovieID)
		if movie, err := client.MovieByID(ctx, f.MovieID); err == nil {
			title = movie.Title
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", f.MovieID, title, f.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runComment(ctx context.Context, client *catalog.Client, viewer identity.Viewer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: comment <movieID> <rating> <text...>")
	}
	movieID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid movie id %q", args[0])
	}
	ratingValue, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid rating %q", args[1])
	}
	text := ""
	for i, part := range args[2:] {
		if i > 0 {
			text += " "
		}
		text += part
	}

	var updated float64
	thread := rating.NewThread(client, viewer, movieID, rating.Events{
		RatingChanged: func(r float64) { updated = r },
	})
	if err := thread.Load(ctx); err != nil {
		return err
	}
	posted, err := thread.Post(ctx, text, ratingValue)
	if err != nil {
		return err
	}
	fmt.Printf("comment %d posted, movie rating is now %.1f\n", posted.ID, updated)
	return nil
}

func runLogin(ids *identity.Manager, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: login <userID> <name> <token>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	return ids.Login(identity.Viewer{UserID: userID, Name: args[1], Token: args[2]})
}
