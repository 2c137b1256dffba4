package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"btce_go/internal/app"
	"btce_go/internal/domain"

	"github.com/urfave/cli/v2"
)

func jsonOutput(in any) error {
	j, err := json.MarshalIndent(in, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(j))
	return err
}

// withBootstrap wires the components without starting any loop.
func withBootstrap(opts *app.Options, fn func(c *cli.Context, b *app.Bootstrap) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		b := app.NewBootstrap()
		if err := b.Initialize(*opts); err != nil {
			return fmt.Errorf("bootstrapping failed: %w", err)
		}
		defer func() {
			if err := b.Close(); err != nil {
				slog.Error("Failed to close storage", slog.Any("error", err))
			}
		}()
		return fn(c, b)
	}
}

func commands(opts *app.Options) []*cli.Command {
	// Flags are built per command; urfave/cli keeps parsed state on the flag.
	pairFlag := func() cli.Flag {
		return &cli.StringSliceFlag{
			Name:  "pair",
			Value: cli.NewStringSlice("btc_usd"),
			Usage: "currency pair(s), e.g. btc_usd or BTC/USD",
		}
	}
	limitFlag := func() cli.Flag {
		return &cli.IntFlag{
			Name:  "limit",
			Value: 150,
			Usage: "number of entries to fetch",
		}
	}

	return []*cli.Command{
		{
			Name:  "ticker",
			Usage: "print the ticker of one or more pairs",
			Flags: []cli.Flag{pairFlag()},
			Action: withBootstrap(opts, func(c *cli.Context, b *app.Bootstrap) error {
				pairs, err := normalizePairs(c.StringSlice("pair"))
				if err != nil {
					return err
				}
				tickers, err := b.Public.Ticker(c.Context, pairs...)
				if err != nil {
					return err
				}
				return jsonOutput(tickers)
			}),
		},
		{
			Name:  "depth",
			Usage: "print the order book of one or more pairs",
			Flags: []cli.Flag{pairFlag(), limitFlag()},
			Action: withBootstrap(opts, func(c *cli.Context, b *app.Bootstrap) error {
				pairs, err := normalizePairs(c.StringSlice("pair"))
				if err != nil {
					return err
				}
				books, err := b.Public.DepthLimit(c.Context, c.Int("limit"), pairs...)
				if err != nil {
					return err
				}
				return jsonOutput(books)
			}),
		},
		{
			Name:  "trades",
			Usage: "print the latest public trades of one or more pairs",
			Flags: []cli.Flag{pairFlag(), limitFlag()},
			Action: withBootstrap(opts, func(c *cli.Context, b *app.Bootstrap) error {
				pairs, err := normalizePairs(c.StringSlice("pair"))
				if err != nil {
					return err
				}
				trades, err := b.Public.Trades(c.Context, c.Int("limit"), pairs...)
				if err != nil {
					return err
				}
				return jsonOutput(trades)
			}),
		},
		{
			Name:  "history",
			Usage: "print the account's transaction history, or its trades with --trades",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "trades", Usage: "print own trades instead of transactions"},
				&cli.Int64Flag{Name: "count", Value: 1000, Usage: "maximum number of entries"},
				&cli.StringFlag{Name: "pair", Usage: "filter trades by pair"},
			},
			Action: withBootstrap(opts, func(c *cli.Context, b *app.Bootstrap) error {
				if b.Private == nil {
					return domain.ErrPublicOnly
				}
				q := domain.DefaultHistoryQuery()
				q.Count = c.Int64("count")
				if c.Bool("trades") {
					if p := c.String("pair"); p != "" {
						pair, err := domain.NormalizePair(p)
						if err != nil {
							return err
						}
						q.Pair = pair
					}
					records, err := b.Private.TradeHistory(c.Context, q)
					if err != nil {
						return err
					}
					return jsonOutput(records)
				}
				txs, err := b.Private.TransactionHistory(c.Context, q)
				if err != nil {
					return err
				}
				return jsonOutput(txs)
			}),
		},
		{
			Name:      "order",
			Usage:     "print one order by id",
			ArgsUsage: "<order_id>",
			Action: withBootstrap(opts, func(c *cli.Context, b *app.Bootstrap) error {
				if b.Private == nil {
					return domain.ErrPublicOnly
				}
				var id int64
				if _, err := fmt.Sscan(c.Args().First(), &id); err != nil || id <= 0 {
					return errors.New("order id must be a positive integer")
				}
				order, err := b.Private.OrderInfo(c.Context, id)
				if err != nil {
					return err
				}
				return jsonOutput(order)
			}),
		},
	}
}

func normalizePairs(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		pair, err := domain.NormalizePair(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, nil
}
