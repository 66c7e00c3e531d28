package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hammerdown-io/hammerdown/internal/dbconfig"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

// seedFile mirrors the demo JSON structure.
type seedFile struct {
	Auction struct {
		Name  string              `json:"name"`
		Rules models.AuctionRules `json:"rules"`
	} `json:"auction"`
	Players []struct {
		Name       string            `json:"name"`
		BasePrice  int64             `json:"base_price"`
		IsIcon     bool              `json:"is_icon"`
		Attributes map[string]string `json:"attributes"`
	} `json:"players"`
	Bidders []struct {
		Slug     string `json:"slug"`
		TeamName string `json:"team_name"`
		PhotoURL string `json:"photo_url"`
	} `json:"bidders"`
}

func main() {
	path := "internal/assets/demo_auction.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx := context.Background()

	rules, err := json.Marshal(seed.Auction.Rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal rules: %v\n", err)
		os.Exit(1)
	}
	auctionID := uuid.New()
	if _, err := pool.Exec(ctx, `
        INSERT INTO auctions (id, name, status, rules)
        VALUES ($1, $2, $3, $4)
    `, auctionID, seed.Auction.Name, models.AuctionStatusDraft, rules); err != nil {
		fmt.Fprintf(os.Stderr, "insert auction: %v\n", err)
		os.Exit(1)
	}

	var players, bidders, errs int
	for _, p := range seed.Players {
		attrs, err := json.Marshal(p.Attributes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal attributes for %s: %v\n", p.Name, err)
			errs++
			continue
		}
		if _, err := pool.Exec(ctx, `
            INSERT INTO players (id, auction_id, name, base_price, is_icon, status, attributes)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, uuid.New(), auctionID, p.Name, p.BasePrice, p.IsIcon, models.PlayerStatusAvailable, attrs); err != nil {
			fmt.Fprintf(os.Stderr, "insert player %s: %v\n", p.Name, err)
			errs++
			continue
		}
		players++
	}

	total := seed.Auction.Rules.TotalPurse
	for _, b := range seed.Bidders {
		if _, err := pool.Exec(ctx, `
            INSERT INTO bidders (id, auction_id, slug, team_name, photo_url, purse_amount, remaining_purse)
            VALUES ($1, $2, $3, $4, $5, $6, $6)
        `, uuid.New(), auctionID, b.Slug, b.TeamName, b.PhotoURL, total); err != nil {
			fmt.Fprintf(os.Stderr, "insert bidder %s: %v\n", b.Slug, err)
			errs++
			continue
		}
		bidders++
	}

	fmt.Printf(
		"Demo seed complete: auction %s, %d players, %d bidders, %d errors\n",
		auctionID, players, bidders, errs,
	)
}
