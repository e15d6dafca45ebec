package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bountyline/internal/app"
	"bountyline/internal/config"
	"bountyline/internal/db"
	"bountyline/internal/domain"
	"bountyline/internal/engine"
	"bountyline/internal/oracle"
	"bountyline/internal/repo"
	"bountyline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "bl",
	Short: "Bountyline CLI",
	Long: `Bountyline escrows bounties against external issues and pays them out
for verified work.
- Workspace: a .bountyline directory holding the database; protocol
  parameters are written there once at init and never change.
- Identity: accounts register a uniqueness token before touching funds.
- Issue: a bounty-backed work item; contributors take it against a stake,
  claim completion percentages, and get paid when the creator completes
  it or when the deadline lets them exit with the accepted fraction.
- Ledger: every unit entering or leaving escrow is journaled; 'bl custody'
  shows what is held right now.
- Event log: diary of changes, view with 'bl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BOUNTYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("account", "local-user", "acting account")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(protocolCmd())
	rootCmd.AddCommand(identityCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(custodyCmd())
	rootCmd.AddCommand(oracleCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var oracleAccount, feeRecipient string
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Print(config.GenerateDefault(oracleAccount, feeRecipient))
				return nil
			}
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(oracleAccount, feeRecipient)), 0o644); err != nil {
				return err
			}
			conn, storedCfg, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("Initialized %s (db at %s)\n", path, db.Path(workspace))
			return printJSONOrTable(storedCfg.Protocol)
		},
	}
	cmd.Flags().StringVar(&oracleAccount, "oracle-account", "", "account allowed to record confidence scores")
	cmd.Flags().StringVar(&feeRecipient, "fee-recipient", "", "account receiving the protocol fee")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print default config without writing")
	return cmd
}

func protocolCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "protocol", Short: "Protocol parameters"}
	cmd.AddCommand(protocolShowCmd())
	cmd.AddCommand(protocolImportCmd())
	return cmd
}

func protocolShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the parameters this workspace was initialized with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config.Protocol)
			})
		},
	}
}

func protocolImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a config file against the initialized parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if !e.Config.SameProtocol(imported) {
					return app.ErrProtocolMismatch
				}
				fmt.Println("protocol parameters match")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "identity", Short: "Identity registry"}
	cmd.AddCommand(identityRegisterCmd())
	cmd.AddCommand(identityShowCmd())
	return cmd
}

func identityRegisterCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Bind the acting account to a uniqueness token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				account := viper.GetString("account")
				if err := e.RegisterIdentity(ctx, account, token); err != nil {
					return err
				}
				v, err := e.Identity.Get(ctx, account)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "uniqueness token from the external verifier")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func identityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [account]",
		Short: "Show verification status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := viper.GetString("account")
			if len(args) == 1 {
				account = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ok, err := e.Identity.IsVerified(ctx, account)
				if err != nil {
					return err
				}
				if !ok {
					return printJSONOrTable(map[string]any{"account": account, "verified": false})
				}
				v, err := e.Identity.Get(ctx, account)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "issue", Short: "Manage issues"}
	cmd.AddCommand(issueCreateCmd())
	cmd.AddCommand(issueListCmd())
	cmd.AddCommand(issueShowCmd())
	cmd.AddCommand(issueTakeCmd())
	cmd.AddCommand(issueClaimCmd())
	cmd.AddCommand(issueRespondCmd())
	cmd.AddCommand(issueCompleteCmd())
	cmd.AddCommand(issueExpireCmd())
	cmd.AddCommand(issueTopUpCmd())
	cmd.AddCommand(issueExtendCmd())
	cmd.AddCommand(issueDifficultyCmd())
	return cmd
}

func issueCreateCmd() *cobra.Command {
	var reference, difficulty string
	var payment, minPct, easyDays, mediumDays, hardDays int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Escrow a new issue bounty",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.CreateIssue(ctx, engine.CreateIssueOptions{
					Creator:          viper.GetString("account"),
					Reference:        reference,
					Difficulty:       d,
					Payment:          payment,
					MinCompletionPct: minPct,
					EasyDays:         easyDays,
					MediumDays:       mediumDays,
					HardDays:         hardDays,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "external issue reference (URL)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "easy", "easy, medium or hard")
	cmd.Flags().Int64Var(&payment, "payment", 0, "deposit; the protocol fee is skimmed off it")
	cmd.Flags().Int64Var(&minPct, "min-completion", 0, "stake forfeiture threshold percentage")
	cmd.Flags().Int64Var(&easyDays, "easy-days", 0, "override easy duration in days")
	cmd.Flags().Int64Var(&mediumDays, "medium-days", 0, "override medium duration in days")
	cmd.Flags().Int64Var(&hardDays, "hard-days", 0, "override hard duration in days")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func issueListCmd() *cobra.Command {
	var creator, assignee string
	var openOnly, completedOnly bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filters := repo.IssueFilters{Creator: creator, AssignedTo: assignee, Limit: limit}
				if openOnly {
					v := true
					filters.Open = &v
				}
				if completedOnly {
					v := true
					filters.Completed = &v
				}
				issues, err := e.Repo.ListIssues(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issues)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Reference", "Bounty", "Difficulty", "Assigned", "Done%", "Deadline", "Completed"})
				for _, i := range issues {
					assigned := ""
					if i.AssignedTo != nil {
						assigned = *i.AssignedTo
					}
					deadline := ""
					if i.Deadline != nil {
						deadline = *i.Deadline
					}
					tw.AppendRow(table.Row{i.ID, i.Reference, i.Bounty, i.Difficulty.String(), assigned, i.PercentageCompleted, deadline, i.IsCompleted})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "filter by creator")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by current contributor")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only open issues")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "only completed issues")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func issueShowCmd() *cobra.Command {
	var withJournal, withContributors bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.Repo.GetIssue(ctx, id)
				if err != nil {
					return err
				}
				attempted, err := e.Repo.HasAttempted(ctx, id, viper.GetString("account"))
				if err != nil {
					return err
				}
				out := map[string]any{"issue": issue, "expirable": e.Expirable(issue), "attempted": attempted}
				if withContributors {
					history, err := e.Repo.ListContributors(ctx, id)
					if err != nil {
						return err
					}
					out["contributors"] = history
				}
				if withJournal {
					journal, err := e.Ledger.IssueJournal(ctx, id)
					if err != nil {
						return err
					}
					out["journal"] = journal
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().BoolVar(&withJournal, "journal", false, "include value movements")
	cmd.Flags().BoolVar(&withContributors, "contributors", false, "include assignment history")
	return cmd
}

func issueTakeCmd() *cobra.Command {
	var stake int64
	cmd := &cobra.Command{
		Use:   "take <id>",
		Short: "Take an open issue against a stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.TakeIssue(ctx, id, viper.GetString("account"), stake)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().Int64Var(&stake, "stake", 0, "stake amount (5 to 20 percent of the bounty by default)")
	_ = cmd.MarkFlagRequired("stake")
	return cmd
}

func issueClaimCmd() *cobra.Command {
	var pct int64
	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a completion percentage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.SubmitPercentageClaim(ctx, id, viper.GetString("account"), pct)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().Int64Var(&pct, "percentage", 0, "claimed completion percentage")
	_ = cmd.MarkFlagRequired("percentage")
	return cmd
}

func issueRespondCmd() *cobra.Command {
	var accept, reject bool
	cmd := &cobra.Command{
		Use:   "respond <id>",
		Short: "Accept or reject the pending claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if accept == reject {
				return fmt.Errorf("exactly one of --accept or --reject is required")
			}
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.RespondToClaim(ctx, id, viper.GetString("account"), accept)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the claim")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the claim")
	return cmd
}

func issueCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete the issue and pay the contributor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.CompleteIssue(ctx, id, viper.GetString("account"))
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
}

func issueExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <id>",
		Short: "Reclaim an expired assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.ClaimExpiredIssue(ctx, id, viper.GetString("account"))
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
}

func issueTopUpCmd() *cobra.Command {
	var amount int64
	cmd := &cobra.Command{
		Use:   "topup <id>",
		Short: "Increase the bounty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.IncreaseBounty(ctx, id, viper.GetString("account"), amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to add to the bounty")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func issueExtendCmd() *cobra.Command {
	var days int64
	cmd := &cobra.Command{
		Use:   "extend <id>",
		Short: "Extend the assignment deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.IncreaseDeadline(ctx, id, viper.GetString("account"), days)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().Int64Var(&days, "days", 0, "days to add to the current deadline")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func issueDifficultyCmd() *cobra.Command {
	var difficulty string
	cmd := &cobra.Command{
		Use:   "difficulty <id>",
		Short: "Raise the difficulty of an assigned issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				issue, err := e.IncreaseDifficulty(ctx, id, viper.GetString("account"), d)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().StringVar(&difficulty, "to", "", "new difficulty (must be higher)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func custodyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "custody",
		Short: "Show total value held in escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				total, err := e.Ledger.TotalCustody(ctx)
				if err != nil {
					return err
				}
				staked, err := e.Repo.TotalStaked(ctx, viper.GetString("account"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"total_custody": total,
					"my_staked":     staked,
				})
			})
		},
	}
}

func oracleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "oracle", Short: "Analyzer-backed grading"}
	cmd.AddCommand(oracleGradeCmd())
	return cmd
}

func oracleGradeCmd() *cobra.Command {
	var prURL string
	var score int64
	cmd := &cobra.Command{
		Use:   "grade <id>",
		Short: "Record a confidence score for an assigned issue",
		Long: `Records an advisory confidence score as the configured oracle account.
With --pr-url the external analyzer is asked for a verdict and its score
is used; with --score the value is recorded directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIssueID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if prURL != "" {
					client, err := oracle.New(e.Config.Oracle)
					if err != nil {
						return err
					}
					analysis, err := client.Analyze(ctx, prURL)
					if err != nil {
						return err
					}
					if analysis.Score < 0 {
						return fmt.Errorf("analyzer returned no score: %s", analysis.Text)
					}
					score = analysis.Score
					fmt.Printf("analyzer score %d for %s\n", score, prURL)
				}
				issue, err := e.GradeByAI(ctx, id, e.Config.Protocol.OracleAccount, score)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().StringVar(&prURL, "pr-url", "", "pull request to analyze")
	cmd.Flags().Int64Var(&score, "score", 0, "score to record directly")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "API keys for the HTTP server"}
	cmd.AddCommand(apiKeyCreateCmd())
	cmd.AddCommand(apiKeyListCmd())
	cmd.AddCommand(apiKeyDeleteCmd())
	return cmd
}

func apiKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				key := uuid.NewString()
				rec := domain.APIKey{
					ID:        uuid.NewString(),
					Account:   viper.GetString("account"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(key),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, rec); err != nil {
					return err
				}
				// The raw key is shown once and never stored.
				return printJSONOrTable(map[string]any{"id": rec.ID, "account": rec.Account, "key": key})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "label for the key")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, account)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&account, "for", "", "filter by account")
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	var issueID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, issueID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().Int64Var(&issueID, "issue", 0, "issue id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:     os.Getenv("BOUNTYLINE_JWT_SECRET"),
				AllowDevLogin: cfg.Server.AllowDevLogin,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = cfg.Server.JWTSecret
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("BOUNTYLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(cmd.Context(), e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Bountyline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, cfg, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, _, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func parseIssueID(raw string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid issue id %q", raw)
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
