// Command seed loads the sample card catalog and demo players, and prints a
// bearer token for each player.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/gosimple/slug"

	"github.com/wfunc/triad/auth"
	"github.com/wfunc/triad/config"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/matchmaking"
	"github.com/wfunc/triad/models"
	"github.com/wfunc/triad/persistence"
	"github.com/wfunc/triad/services"
)

type charDef struct {
	name                  string
	up, down, left, right int
	rarity                game.Rarity
}

type trapDef struct {
	name   string
	kind   game.TrapType
	value  int
	rarity game.Rarity
}

var characters = []charDef{
	{"Squire", 2, 3, 1, 4, game.RarityCommon},
	{"Archer", 4, 1, 3, 2, game.RarityCommon},
	{"Shield Bearer", 5, 2, 2, 1, game.RarityCommon},
	{"Scout", 1, 4, 4, 2, game.RarityCommon},
	{"Herbalist", 3, 3, 2, 2, game.RarityCommon},
	{"Militia", 2, 2, 3, 3, game.RarityCommon},
	{"Knight", 5, 4, 3, 5, game.RarityRare},
	{"Sorceress", 6, 3, 5, 3, game.RarityRare},
	{"Wyvern Rider", 7, 4, 6, 4, game.RarityEpic},
	{"Dragon Queen", 9, 6, 7, 8, game.RarityLegendary},
}

var traps = []trapDef{
	{"Pitfall", game.TrapMinusUp, 1, game.RarityCommon},
	{"Snare", game.TrapMinusDown, 1, game.RarityCommon},
	{"Caltrops", game.TrapMinusLeft, 1, game.RarityCommon},
	{"Tripwire", game.TrapMinusRight, 1, game.RarityCommon},
	{"Cursed Sigil", game.TrapMinusUp, 3, game.RarityEpic},
}

// image 用名称的 slug 作为对象键
func image(name string) string {
	return "cards/" + slug.Make(name) + ".png"
}

func catalog() ([]game.CharacterCard, []game.TrapCard) {
	chars := make([]game.CharacterCard, 0, len(characters))
	for i, c := range characters {
		chars = append(chars, game.CharacterCard{
			ID:     i + 1,
			Name:   c.name,
			Stats:  game.Stats{Up: c.up, Down: c.down, Left: c.left, Right: c.right},
			Rarity: c.rarity,
			Image:  image(c.name),
		})
	}
	ts := make([]game.TrapCard, 0, len(traps))
	for i, t := range traps {
		ts = append(ts, game.TrapCard{
			ID:       i + 1,
			Name:     t.name,
			TrapType: t.kind,
			Value:    t.value,
			Rarity:   t.rarity,
			Image:    image(t.name),
		})
	}
	return chars, ts
}

// seed writes the catalog and registers every username not yet taken.
func seed(ctx context.Context, store persistence.Store, players *services.PlayerService, usernames []string) ([]models.User, error) {
	chars, ts := catalog()
	if err := store.SeedCatalog(ctx, chars, ts); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	var created []models.User
	for _, name := range usernames {
		u := models.User{Username: name}
		err := store.CreateUser(ctx, &u)
		if errors.Is(err, persistence.ErrDuplicate) {
			logger.Log.Infof("User %s already exists", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create user %s: %w", name, err)
		}
		if err := players.OnPlayerCreated(ctx, u.ID); err != nil {
			return nil, err
		}
		created = append(created, u)
	}
	return created, nil
}

func main() {
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()
	usernames := flag.Args()
	if len(usernames) == 0 {
		usernames = []string{"alice", "bob"}
	}

	logger.Init()
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	pg := cfg.Database.Postgres
	store, err := persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	players := services.NewPlayerService(store, matchmaking.NewService(store))
	users, err := seed(ctx, store, players, usernames)
	if err != nil {
		logger.Log.Fatalf("Seed failed: %v", err)
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl)
	for _, u := range users {
		token, err := issuer.Issue(u.ID, u.Username)
		if err != nil {
			logger.Log.Fatalf("Issue token for %s: %v", u.Username, err)
		}
		fmt.Printf("%s\t%d\t%s\n", u.Username, u.ID, token)
	}
}
