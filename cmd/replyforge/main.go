package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/internal/email"
	"github.com/replyforge/replyforge/internal/engine"
	"github.com/replyforge/replyforge/internal/history"
	"github.com/replyforge/replyforge/internal/mailbox"
	"github.com/replyforge/replyforge/internal/responder"
	"github.com/replyforge/replyforge/internal/rules"
	"github.com/replyforge/replyforge/internal/web"
)

var (
	cfgFile string
	dryRun  bool
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "replyforge",
		Short: "ReplyForge - Keyword-based email auto-responder",
		Long: `ReplyForge watches an IMAP inbox and automatically replies to incoming
mail based on fuzzy keyword rules.

Rules pair a keyword with a canned response. Incoming messages are
tokenized, stemmed, and scored against every active rule; the best
match above the threshold decides the reply, with a fallback response
when nothing matches.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.replyforge/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(respondCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your mailbox, sender, and matching settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runCmd() *cobra.Command {
	var watch bool
	var interval int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process unseen mail and send replies",
		Long: `Connect to the configured inbox, fetch unseen messages, and reply to
each one according to the rule database.

With --watch the process keeps running: it replies as soon as the
server reports new mail (IMAP IDLE) and additionally polls on the
configured interval, until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(watch, interval)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and reply as new mail arrives")
	cmd.Flags().IntVar(&interval, "interval", 0, "Poll interval in minutes (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview replies without sending or marking mail seen")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local web interface",
		Long: `Start a local web server providing a browser-based interface for ReplyForge.

This opens a dashboard where you can:
- Manage keyword rules
- Review the reply log and statistics
- Tune matching settings
- Test how a message would be answered
- Start and stop the inbox monitor

The server listens on localhost only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")

	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage keyword rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <keyword> <response>",
		Short: "Add or update a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesAdd(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <keyword>",
		Short: "Deactivate a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesRemove(args[0])
		},
	})

	return cmd
}

func respondCmd() *cobra.Command {
	var subject string
	var body string

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Show the reply a message would get",
		Long: `Run the matching engine against a subject and body without touching
the inbox. Prints the composed reply and every rule's score.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRespond(subject, body)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Message subject")
	cmd.Flags().StringVar(&body, "body", "", "Message body")

	return cmd
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show reply history and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent replies to show")

	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📬 ReplyForge Configuration Setup")
	fmt.Println("=================================")
	fmt.Println()

	cfg := config.Default()

	fmt.Println("📥 Mailbox (IMAP)")
	fmt.Println()

	cfg.Mailbox.Provider = prompt(reader, "Provider (gmail/outlook/custom) [gmail]: ")
	if cfg.Mailbox.Provider == "" {
		cfg.Mailbox.Provider = "gmail"
	}
	cfg.Mailbox.Email = prompt(reader, "Email address: ")
	cfg.Mailbox.Password = prompt(reader, "Password or app password: ")
	if cfg.Mailbox.Provider == "custom" {
		cfg.Mailbox.Server = prompt(reader, "IMAP server: ")
		if portStr := prompt(reader, "IMAP port [993]: "); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil {
				cfg.Mailbox.Port = port
			}
		}
	}

	fmt.Println()
	fmt.Println("📧 Outgoing Mail")
	fmt.Println()

	provider := prompt(reader, "Send via (smtp/sendgrid/resend) [smtp]: ")
	if provider == "" {
		provider = "smtp"
	}
	cfg.Email.Provider = provider
	cfg.Email.From = cfg.Mailbox.Email

	switch provider {
	case "smtp":
		fmt.Println()
		fmt.Println("SMTP Configuration:")
		fmt.Println("  (For Gmail, see https://support.google.com/accounts/answer/185833 for app passwords)")
		fmt.Println()
		cfg.Email.SMTP.Host = prompt(reader, "  SMTP host [smtp.gmail.com]: ")
		if cfg.Email.SMTP.Host == "" {
			cfg.Email.SMTP.Host = "smtp.gmail.com"
		}
		cfg.Email.SMTP.Port = 465
		cfg.Email.SMTP.UseTLS = true
		cfg.Email.SMTP.Username = cfg.Mailbox.Email
		cfg.Email.SMTP.Password = prompt(reader, "  SMTP password (blank to reuse mailbox password): ")
		if cfg.Email.SMTP.Password == "" {
			cfg.Email.SMTP.Password = cfg.Mailbox.Password
		}
	case "sendgrid":
		cfg.Email.SendGridAPIKey = prompt(reader, "  SendGrid API key: ")
	case "resend":
		cfg.Email.ResendAPIKey = prompt(reader, "  Resend API key: ")
	}

	fmt.Println()
	fmt.Println("⚙️  Matching")
	fmt.Println()

	if language := prompt(reader, "Language (portuguese/english) [portuguese]: "); language != "" {
		cfg.Engine.Language = language
	}
	if mode := prompt(reader, "Mode (fuzzy/exact) [fuzzy]: "); mode != "" {
		cfg.Engine.Mode = mode
	}
	if thresholdStr := prompt(reader, "Fuzzy threshold (0-1) [0.7]: "); thresholdStr != "" {
		if threshold, err := strconv.ParseFloat(thresholdStr, 64); err == nil {
			cfg.Engine.Threshold = threshold
		}
	}

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	store, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer store.Close()

	if err := store.SeedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default rules: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'replyforge rules list' to review the rules")
	fmt.Println("  2. Run 'replyforge respond --subject ... --body ...' to test matching")
	fmt.Println("  3. Run 'replyforge run --dry-run' to preview replies")
	fmt.Println("  4. Run 'replyforge run --watch' to start answering mail")

	return nil
}

func runRun(watch bool, interval int) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dryRun {
		cfg.Options.DryRun = true
	}
	if interval > 0 {
		cfg.Options.IntervalMinutes = interval
	}

	if err := cfg.ValidateEngine(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !cfg.Options.DryRun {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if err := cfg.ValidateMailbox(); err != nil {
		return fmt.Errorf("mailbox not configured: %w", err)
	}

	ruleStore, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer ruleStore.Close()

	historyStore, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open reply log: %w", err)
	}
	defer historyStore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	monitor := mailbox.NewMonitor(cfg.Mailbox)
	if err := monitor.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mailbox: %w", err)
	}
	defer monitor.Disconnect()

	var sender email.Sender
	if !cfg.Options.DryRun {
		sender, err = email.NewSender(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
	}

	eng := engineFromConfig(cfg)
	resp := responder.New(monitor, eng, ruleStore, sender, historyStore,
		cfg.Email.From, cfg.Options.DryRun)

	if cfg.Options.DryRun {
		fmt.Println("🔍 DRY RUN MODE - No replies will be sent")
		fmt.Println()
	}

	if watch {
		fmt.Printf("👀 Watching %s... (Ctrl+C to stop)\n", cfg.Mailbox.Email)
		fmt.Println()

		if _, err := resp.ProcessOnce(ctx); err != nil {
			return fmt.Errorf("failed to process inbox: %w", err)
		}

		// IDLE for immediate replies, with the configured interval as a
		// safety poll.
		pollInterval := time.Duration(cfg.Options.IntervalMinutes) * time.Minute
		err := monitor.WatchForNewMail(ctx, pollInterval, func() {
			if _, err := resp.ProcessOnce(ctx); err != nil {
				fmt.Printf("⚠️  Cycle failed: %v\n", err)
			}
		})
		if err != nil && err != context.Canceled {
			return fmt.Errorf("watch error: %w", err)
		}
		return nil
	}

	summary, err := resp.ProcessOnce(ctx)
	if err != nil {
		return fmt.Errorf("failed to process inbox: %w", err)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if cfg.Options.DryRun {
		fmt.Printf("📊 Dry run complete: %d messages, %d would get a rule reply, %d the fallback\n",
			summary.Processed, summary.Replied, summary.Fallback)
	} else {
		fmt.Printf("📊 Complete: %d processed, %d rule replies, %d fallback, %d failed\n",
			summary.Processed, summary.Replied, summary.Fallback, summary.Failed)
	}

	return nil
}

func runServe(port int) error {
	configPath := resolveConfigPath()
	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	ruleStore, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer ruleStore.Close()

	if err := ruleStore.SeedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default rules: %w", err)
	}

	historyStore, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open reply log: %w", err)
	}
	defer historyStore.Close()

	server, err := web.NewServer(port, cfg, configPath, ruleStore, historyStore)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}

func runRulesList() error {
	store, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer store.Close()

	ruleList, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	fmt.Printf("📋 Rules (%d total)\n", len(ruleList))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for _, r := range ruleList {
		status := "✅"
		if !r.Active {
			status = "💤"
		}
		fmt.Printf("\n%s %s\n", status, r.Keyword)
		fmt.Printf("   %s\n", r.Response)
	}

	return nil
}

func runRulesAdd(keyword, response string) error {
	store, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer store.Close()

	rule, err := store.Add(keyword, response)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Rule saved: '%s'\n", rule.Keyword)
	return nil
}

func runRulesRemove(keyword string) error {
	store, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer store.Close()

	if err := store.Deactivate(keyword); err != nil {
		return err
	}

	fmt.Printf("✅ Rule deactivated: '%s'\n", keyword)
	return nil
}

func runRespond(subject, body string) error {
	if subject == "" && body == "" {
		return fmt.Errorf("please provide --subject and/or --body")
	}

	cfg := config.Default()
	if _, err := os.Stat(resolveConfigPath()); err == nil {
		loaded, err := config.Load(resolveConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	store, err := rules.NewStore(rules.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	defer store.Close()

	snapshot, err := store.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	eng := engineFromConfig(cfg)
	reply := eng.Respond(subject, body, snapshot)

	if reply.MatchedKeyword != "" {
		fmt.Printf("🎯 Matched keyword: %s\n", reply.MatchedKeyword)
	} else {
		fmt.Println("💬 No rule matched, fallback response used")
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println(reply.Text)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	ranked := eng.Rank(strings.TrimSpace(subject+" "+body), snapshot)
	if len(ranked) > 0 {
		fmt.Println()
		fmt.Println("Scores:")
		for _, m := range ranked {
			fmt.Printf("  %-24s %.0f%%\n", m.Keyword, m.Score*100)
		}
	}

	return nil
}

func runStatus(limit int) error {
	store, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open reply log: %w", err)
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("📊 ReplyForge Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("All Time:")
	fmt.Printf("  Messages processed: %d\n", stats.Total)
	fmt.Printf("  Rule replies: %d\n", stats.Replied)
	fmt.Printf("  Fallback replies: %d\n", stats.Fallback)
	fmt.Println()
	fmt.Println("This Month:")
	fmt.Printf("  Processed: %d\n", stats.ThisMonth)

	entries, err := store.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent replies: %w", err)
	}

	if len(entries) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Replies (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		for _, e := range entries {
			matched := e.MatchedKeyword
			if matched == "" {
				matched = "fallback"
			}
			fmt.Printf("✉️  %s - %s (%s)\n",
				e.ProcessedAt.Format("2006-01-02 15:04"),
				e.Sender,
				matched,
			)
			if e.Subject != "" {
				fmt.Printf("   Subject: %s\n", e.Subject)
			}
		}
	}

	return nil
}

func engineFromConfig(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Options{
		Language:  cfg.Engine.Language,
		Threshold: cfg.Engine.Threshold,
		Mode:      engine.Mode(cfg.Engine.Mode),
		Fallback:  cfg.Engine.Fallback,
		Signature: cfg.Engine.Signature,
	})
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}
