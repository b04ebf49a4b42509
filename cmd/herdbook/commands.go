package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"herdbook/internal/adapters/httpapi"
	"herdbook/internal/core"
	"herdbook/pkg/domain"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:          "herdbook",
		Short:        "Pedigree analysis for small herds",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		recommendCmd(a),
		classifyCmd(a),
		depthCmd(a),
		seasonalCmd(a),
		exportCmd(a),
		seedCmd(a),
		serveCmd(a),
	)
	return root
}

// withService opens the configured store for the duration of fn.
func (a *app) withService(ctx context.Context, fn func(*core.Service) error) (err error) {
	rt, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(rt.svc)
}

func recommendCmd(a *app) *cobra.Command {
	var depth int
	var env string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "List compatible dam/sire pairs, best first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := core.RecommendationQuery{MaxDepth: depth}
			if env != "" {
				class, err := core.ParseEnvironmentClass(env)
				if err != nil {
					return err
				}
				q.Environment = class
			}
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				recs, err := svc.Recommend(cmd.Context(), q)
				if err != nil {
					return err
				}
				if asJSON {
					return a.printJSON(recs)
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DAM\tSIRE\tSPECIES\tSCORE")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", r.DamName, r.SireName, r.Species, r.Score)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "ancestry generations to inspect (1-5, 0 for the environment default)")
	cmd.Flags().StringVar(&env, "env", "", "environment class: constrained or unconstrained")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func classifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <animal> <animal>",
		Short: "Classify the relationship between two animals given by ID or name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				verdict, err := svc.ClassifyRelationship(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return a.printJSON(verdict)
			})
		},
	}
}

func depthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depth",
		Short: "Inspect and record generation depths",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <animal>",
		Short: "Detect one animal's generation depth and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				depth, err := svc.DetectGenerationDepth(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, depth)
				return err
			})
		},
	}, &cobra.Command{
		Use:   "sync",
		Short: "Recompute every animal's generation depth and write back changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				report, err := svc.SyncGenerationDepths(cmd.Context())
				if err != nil {
					return err
				}
				return a.printJSON(report)
			})
		},
	})
	return cmd
}

func seasonalCmd(a *app) *cobra.Command {
	var species, file string
	cmd := &cobra.Command{
		Use:   "seasonal",
		Short: "Best and worst breeding months from logged breedings",
		Long: `Analyzes logged breedings by calendar month. With --file, analyzes a JSON
array of monthly aggregates ({"month": "march", "breedings": 4, "pregnancies": 3})
instead of the herd book.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				if file != "" {
					aggs, err := readAggregates(file)
					if err != nil {
						return err
					}
					return a.printJSON(svc.AnalyzeSeasonalTrends(species, aggs))
				}
				analysis, err := svc.SeasonalTrends(cmd.Context(), species)
				if err != nil {
					return err
				}
				return a.printJSON(analysis)
			})
		},
	}
	cmd.Flags().StringVar(&species, "species", "", "restrict to dams of this species")
	cmd.Flags().StringVar(&file, "file", "", "analyze monthly aggregates from a JSON file")
	return cmd
}

func readAggregates(path string) ([]domain.MonthlyAggregate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aggregates: %w", err)
	}
	var aggs []domain.MonthlyAggregate
	if err := json.Unmarshal(data, &aggs); err != nil {
		return nil, fmt.Errorf("parse aggregates: %w", err)
	}
	return aggs, nil
}

func exportCmd(a *app) *cobra.Command {
	var depth int
	var species string
	cmd := &cobra.Command{
		Use:       "export <recommendations|seasonal>",
		Short:     "Write a report to the configured artifact store",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"recommendations", "seasonal"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exporter, err := a.exporter(ctx)
			if err != nil {
				return err
			}
			return a.withService(ctx, func(svc *core.Service) error {
				switch args[0] {
				case "recommendations":
					recs, err := svc.GenerateRecommendations(ctx, depth)
					if err != nil {
						return err
					}
					record, err := exporter.ExportRecommendations(ctx, recs, map[string]string{"depth": fmt.Sprint(depth)})
					if err != nil {
						return err
					}
					return a.printJSON(record)
				default:
					analysis, err := svc.SeasonalTrends(ctx, species)
					if err != nil {
						return err
					}
					record, err := exporter.ExportSeasonal(ctx, analysis, map[string]string{"species": species})
					if err != nil {
						return err
					}
					return a.printJSON(record)
				}
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "ancestry generations to inspect for recommendations")
	cmd.Flags().StringVar(&species, "species", "", "species for the seasonal report")
	return cmd
}

// seedFile is the import format of the seed command.
type seedFile struct {
	Animals        []domain.Animal        `json:"animals"`
	BreedingEvents []domain.BreedingEvent `json:"breeding_events"`
}

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Import animals and breeding events from a JSON file",
		Long: `Imports {"animals": [...], "breeding_events": [...]} in one transaction.
Pedigree slots are keyed by name, e.g. "mother", "paternal_grandfather" or
"sire_dam_dam".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			var seed seedFile
			if err := json.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				res, err := svc.Store().RunInTransaction(cmd.Context(), func(tx domain.Transaction) error {
					for _, animal := range seed.Animals {
						if _, err := tx.CreateAnimal(animal); err != nil {
							return fmt.Errorf("animal %s: %w", animal.DisplayName(), err)
						}
					}
					for _, event := range seed.BreedingEvents {
						if _, err := tx.CreateBreedingEvent(event); err != nil {
							return fmt.Errorf("breeding event %s: %w", event.ID, err)
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
				for _, v := range res.Violations {
					fmt.Fprintf(a.errOut, "warning: %s\n", v.Message)
				}
				_, err = fmt.Fprintf(a.out, "imported %d animals and %d breeding events\n", len(seed.Animals), len(seed.BreedingEvents))
				return err
			})
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			exporter, err := a.exporter(ctx)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr: addr,
				Handler: httpapi.NewRouter(httpapi.Options{
					Service:  rt.svc,
					Exporter: exporter,
					Logger:   core.NewZapLogger(a.logger),
					Metrics:  promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
